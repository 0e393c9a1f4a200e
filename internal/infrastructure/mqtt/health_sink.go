package mqtt

import (
	"encoding/json"

	"github.com/roomwall/roomwall-core/internal/health"
)

// HealthPublisher mirrors aggregator state onto the broker: retained
// per-module health on every view change, the event stream as it
// happens, and the retained system summary. Publish failures are logged
// and dropped; the broker is an observer, never a dependency.
type HealthPublisher struct {
	client *Client
	topics Topics
}

// NewHealthPublisher creates a publisher over a connected client.
func NewHealthPublisher(client *Client) *HealthPublisher {
	return &HealthPublisher{client: client}
}

// Attach subscribes to the aggregator's notifications. Returns a
// detach function.
func (p *HealthPublisher) Attach(svc *health.Service) func() {
	unsubChanged := svc.SubscribeModuleChanged(func(name string) {
		p.publishModule(svc, name)
		p.publishSummary(svc)
	})
	unsubEvents := svc.SubscribeEvents(func(ev health.Event) {
		p.publishEvent(ev)
	})
	return func() {
		unsubChanged()
		unsubEvents()
	}
}

func (p *HealthPublisher) publishModule(svc *health.Service, name string) {
	view, ok := svc.ModuleView(name)
	if !ok {
		return
	}

	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := p.client.PublishRetained(p.topics.ModuleHealth(name), payload); err != nil {
		if logger := p.client.getLogger(); logger != nil {
			logger.Warn("module health publish failed", "module", name, "error", err)
		}
	}

	for _, dev := range view.Devices {
		devPayload, err := json.Marshal(dev)
		if err != nil {
			continue
		}
		if err := p.client.PublishRetained(p.topics.DeviceHealth(name, dev.ID), devPayload); err != nil {
			if logger := p.client.getLogger(); logger != nil {
				logger.Warn("device health publish failed", "module", name, "device", dev.ID, "error", err)
			}
		}
	}
}

func (p *HealthPublisher) publishEvent(ev health.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := p.client.PublishEvent(p.topics.HealthEvent(), payload); err != nil {
		if logger := p.client.getLogger(); logger != nil {
			logger.Warn("health event publish failed", "event", ev.ID, "error", err)
		}
	}
}

func (p *HealthPublisher) publishSummary(svc *health.Service) {
	payload, err := json.Marshal(svc.Summary())
	if err != nil {
		return
	}
	if err := p.client.PublishRetained(p.topics.HealthSummary(), payload); err != nil {
		if logger := p.client.getLogger(); logger != nil {
			logger.Warn("health summary publish failed", "error", err)
		}
	}
}
