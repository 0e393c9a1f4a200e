package audioep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/mixer"
	"github.com/roomwall/roomwall-core/internal/module"
)

// Module family names.
const (
	MicrophoneModule = "microphone"
	SpeakerModule    = "speaker"
)

const defaultInterval = 5 * time.Second

// Module exposes a set of named mixer endpoints as devices.
type Module struct {
	*module.Base

	kind         mixer.Kind
	deviceType   string
	pollInterval time.Duration
	mix          mixer.Mixer
	endpoints    map[string]config.AudioEndpointConfig
}

// NewMicrophone creates the microphone module over mixer sources.
func NewMicrophone(cfg config.MicrophoneConfig, mix mixer.Mixer) *Module {
	return newModule(MicrophoneModule, "microphone", mixer.KindSource,
		cfg.Enabled, cfg.PollInterval, cfg.Endpoints, mix)
}

// NewSpeaker creates the speaker module over mixer sinks.
func NewSpeaker(cfg config.SpeakerConfig, mix mixer.Mixer) *Module {
	return newModule(SpeakerModule, "speaker", mixer.KindSink,
		cfg.Enabled, cfg.PollInterval, cfg.Endpoints, mix)
}

func newModule(name, deviceType string, kind mixer.Kind, enabled bool, pollSeconds int, endpoints []config.AudioEndpointConfig, mix mixer.Mixer) *Module {
	byID := make(map[string]config.AudioEndpointConfig, len(endpoints))
	for _, ep := range endpoints {
		byID[ep.ID] = ep
	}

	interval := defaultInterval
	if pollSeconds > 0 {
		interval = time.Duration(pollSeconds) * time.Second
	}

	return &Module{
		Base:         module.NewBase(name, enabled),
		kind:         kind,
		deviceType:   deviceType,
		pollInterval: interval,
		mix:          mix,
		endpoints:    byID,
	}
}

// Initialize registers the configured endpoints and probes each once.
func (m *Module) Initialize(ctx context.Context) (bool, error) {
	if err := m.BeginInitialize(); err != nil {
		return false, err
	}

	for _, ep := range m.endpoints {
		m.Set().Upsert(module.DeviceInfo{
			ID:     ep.ID,
			Name:   ep.Name,
			Type:   m.deviceType,
			Health: module.HealthOffline,
		})
	}

	m.FinishInitialize(true)
	m.poll(ctx)
	return true, nil
}

// StartMonitoring starts the endpoint poll loop.
func (m *Module) StartMonitoring(ctx context.Context) error {
	return m.StartLoop(ctx, m.pollInterval, m.poll)
}

// StopMonitoring stops the poll loop.
func (m *Module) StopMonitoring(ctx context.Context) error {
	return m.StopLoop(ctx)
}

// Shutdown retires the module.
func (m *Module) Shutdown(ctx context.Context) error {
	m.Retire(ctx)
	return nil
}

// Properties exposes per-endpoint volume and mute.
func (m *Module) Properties() map[string]module.Property {
	return map[string]module.Property{
		"volume": {
			Get: func(ctx context.Context, id string) (any, error) {
				ep, err := m.endpoint(id)
				if err != nil {
					return nil, err
				}
				return m.mapResult(m.mix.Volume(ctx, m.kind, ep.MixerName))
			},
			Set: func(ctx context.Context, id string, payload json.RawMessage) error {
				ep, err := m.endpoint(id)
				if err != nil {
					return err
				}
				var req struct {
					Volume *int `json:"volume"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Volume == nil {
					return fmt.Errorf("%w: volume wants {\"volume\": percent}", module.ErrNotSupported)
				}
				return m.mapErr(m.mix.SetVolume(ctx, m.kind, ep.MixerName, *req.Volume))
			},
		},
		"mute": {
			Get: func(ctx context.Context, id string) (any, error) {
				ep, err := m.endpoint(id)
				if err != nil {
					return nil, err
				}
				muted, err := m.mix.Muted(ctx, m.kind, ep.MixerName)
				return muted, m.mapErr(err)
			},
			Set: func(ctx context.Context, id string, payload json.RawMessage) error {
				ep, err := m.endpoint(id)
				if err != nil {
					return err
				}
				var req struct {
					Muted *bool `json:"muted"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Muted == nil {
					return fmt.Errorf("%w: mute wants {\"muted\": bool}", module.ErrNotSupported)
				}
				return m.mapErr(m.mix.SetMuted(ctx, m.kind, ep.MixerName, *req.Muted))
			},
		},
	}
}

func (m *Module) endpoint(id string) (config.AudioEndpointConfig, error) {
	ep, ok := m.endpoints[id]
	if !ok {
		return config.AudioEndpointConfig{}, module.ErrDeviceNotFound
	}
	return ep, nil
}

func (m *Module) mapResult(v int, err error) (any, error) {
	if err != nil {
		return nil, m.mapErr(err)
	}
	return v, nil
}

// mapErr translates mixer sentinels onto module sentinels.
func (m *Module) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mixer.ErrEndpointNotFound) {
		return fmt.Errorf("%w: endpoint missing from mixer", module.ErrDeviceNotFound)
	}
	return err
}

// poll probes each endpoint's presence in the mixer. An endpoint the
// mixer no longer lists is offline; any other mixer failure marks it
// unhealthy.
func (m *Module) poll(ctx context.Context) {
	for _, ep := range m.endpoints {
		_, err := m.mix.Volume(ctx, m.kind, ep.MixerName)

		var health module.Health
		message := ""
		switch {
		case err == nil:
			health = module.HealthHealthy
		case errors.Is(err, mixer.ErrEndpointNotFound):
			health = module.HealthOffline
			message = "not present in mixer"
		default:
			health = module.HealthUnhealthy
			message = err.Error()
		}

		change, changed := m.Set().SetHealth(ep.ID, health, message)
		m.Publish(change, changed)
	}
}
