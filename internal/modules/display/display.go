package display

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/module"
)

// ModuleName is the registry key and API route prefix.
const ModuleName = "display"

const (
	deviceType      = "display_panel"
	probeTimeout    = 3 * time.Second
	defaultInterval = 5 * time.Second
)

// panelState mirrors a panel controller's reported status.
type panelState struct {
	Power      bool   `json:"power"`
	Brightness int    `json:"brightness"`
	Input      string `json:"input"`
}

// Module drives the configured display panels.
type Module struct {
	*module.Base

	cfg    config.DisplayConfig
	client *http.Client

	mu       sync.Mutex
	panels   map[string]config.DisplayPanelConfig
	disabled map[string]bool
	state    map[string]panelState
}

// New creates the display module from configuration.
func New(cfg config.DisplayConfig) *Module {
	panels := make(map[string]config.DisplayPanelConfig, len(cfg.Panels))
	for _, p := range cfg.Panels {
		panels[p.ID] = p
	}

	return &Module{
		Base:     module.NewBase(ModuleName, cfg.Enabled),
		cfg:      cfg,
		client:   &http.Client{Timeout: probeTimeout},
		panels:   panels,
		disabled: make(map[string]bool),
		state:    make(map[string]panelState),
	}
}

// Initialize registers the configured panels and runs a first probe.
// Unreachable panels are recoverable: they register offline and the
// poll loop keeps trying.
func (m *Module) Initialize(ctx context.Context) (bool, error) {
	if err := m.BeginInitialize(); err != nil {
		return false, err
	}

	for _, p := range m.panels {
		m.Set().Upsert(module.DeviceInfo{
			ID:     p.ID,
			Name:   p.Name,
			Type:   deviceType,
			Health: module.HealthOffline,
		})
	}

	m.FinishInitialize(true)
	m.poll(ctx)
	return true, nil
}

// StartMonitoring starts the panel poll loop.
func (m *Module) StartMonitoring(ctx context.Context) error {
	interval := defaultInterval
	if m.cfg.PollInterval > 0 {
		interval = time.Duration(m.cfg.PollInterval) * time.Second
	}
	return m.StartLoop(ctx, interval, m.poll)
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

// SetDeviceEnabled switches one panel in or out of service. Disabled
// panels stop being probed and report offline.
func (m *Module) SetDeviceEnabled(_ context.Context, deviceID string, enabled bool) error {
	m.mu.Lock()
	_, known := m.panels[deviceID]
	if known {
		m.disabled[deviceID] = !enabled
	}
	m.mu.Unlock()

	if !known {
		return module.ErrDeviceNotFound
	}
	if !enabled {
		change, changed := m.Set().SetHealth(deviceID, module.HealthOffline, "disabled")
		m.Publish(change, changed)
	}
	return nil
}

// Properties exposes the panel controls.
func (m *Module) Properties() map[string]module.Property {
	return map[string]module.Property{
		"power": {
			Get: func(ctx context.Context, id string) (any, error) {
				st, err := m.panelStatus(ctx, id)
				if err != nil {
					return nil, err
				}
				return st.Power, nil
			},
			Set: m.setter("power", func(payload json.RawMessage) (any, error) {
				var req struct {
					On *bool `json:"on"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.On == nil {
					return nil, fmt.Errorf("%w: power wants {\"on\": bool}", module.ErrNotSupported)
				}
				return map[string]bool{"on": *req.On}, nil
			}),
		},
		"brightness": {
			Get: func(ctx context.Context, id string) (any, error) {
				st, err := m.panelStatus(ctx, id)
				if err != nil {
					return nil, err
				}
				return st.Brightness, nil
			},
			Set: m.setter("brightness", func(payload json.RawMessage) (any, error) {
				var req struct {
					Level *int `json:"level"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Level == nil {
					return nil, fmt.Errorf("%w: brightness wants {\"level\": int}", module.ErrNotSupported)
				}
				if *req.Level < 0 || *req.Level > 100 {
					return nil, fmt.Errorf("%w: brightness level %d out of range", module.ErrNotSupported, *req.Level)
				}
				return map[string]int{"level": *req.Level}, nil
			}),
		},
		"input": {
			Get: func(ctx context.Context, id string) (any, error) {
				st, err := m.panelStatus(ctx, id)
				if err != nil {
					return nil, err
				}
				return st.Input, nil
			},
			Set: m.setter("input", func(payload json.RawMessage) (any, error) {
				var req struct {
					Source string `json:"source"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Source == "" {
					return nil, fmt.Errorf("%w: input wants {\"source\": string}", module.ErrNotSupported)
				}
				return map[string]string{"source": req.Source}, nil
			}),
		},
	}
}

// setter builds a Property.Set that validates the payload and posts the
// command to the panel endpoint of the same name.
func (m *Module) setter(endpoint string, validate func(json.RawMessage) (any, error)) func(context.Context, string, json.RawMessage) error {
	return func(ctx context.Context, id string, payload json.RawMessage) error {
		body, err := validate(payload)
		if err != nil {
			return err
		}
		return m.postCommand(ctx, id, endpoint, body)
	}
}

// poll probes every enabled panel once.
func (m *Module) poll(ctx context.Context) {
	m.mu.Lock()
	targets := make([]config.DisplayPanelConfig, 0, len(m.panels))
	for id, p := range m.panels {
		if !m.disabled[id] {
			targets = append(targets, p)
		}
	}
	m.mu.Unlock()

	for _, p := range targets {
		st, err := m.fetchStatus(ctx, p)
		if err != nil {
			change, changed := m.Set().SetHealth(p.ID, module.HealthOffline, err.Error())
			m.Publish(change, changed)
			continue
		}

		m.mu.Lock()
		m.state[p.ID] = st
		m.mu.Unlock()

		change, changed := m.Set().SetHealth(p.ID, module.HealthHealthy, "")
		m.Publish(change, changed)
	}
}

// panelStatus returns the cached state, falling back to a live probe
// when the panel has not been polled yet.
func (m *Module) panelStatus(ctx context.Context, id string) (panelState, error) {
	m.mu.Lock()
	p, known := m.panels[id]
	st, cached := m.state[id]
	m.mu.Unlock()

	if !known {
		return panelState{}, module.ErrDeviceNotFound
	}
	if cached {
		return st, nil
	}
	return m.fetchStatus(ctx, p)
}

func (m *Module) fetchStatus(ctx context.Context, p config.DisplayPanelConfig) (panelState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+p.Address+"/status", nil)
	if err != nil {
		return panelState{}, fmt.Errorf("display: building probe: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return panelState{}, fmt.Errorf("display: panel %s unreachable: %w", p.ID, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read side only

	if resp.StatusCode != http.StatusOK {
		return panelState{}, fmt.Errorf("display: panel %s status %d", p.ID, resp.StatusCode)
	}

	var st panelState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return panelState{}, fmt.Errorf("display: decoding panel %s status: %w", p.ID, err)
	}
	return st, nil
}

func (m *Module) postCommand(ctx context.Context, id, endpoint string, body any) error {
	m.mu.Lock()
	p, known := m.panels[id]
	off := m.disabled[id]
	m.mu.Unlock()

	if !known {
		return module.ErrDeviceNotFound
	}
	if off {
		return fmt.Errorf("%w: panel %s is disabled", module.ErrNotSupported, id)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("display: encoding command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+p.Address+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("display: building command: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("display: panel %s unreachable: %w", p.ID, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read side only

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("display: panel %s rejected %s, status %d", p.ID, endpoint, resp.StatusCode)
	}

	// Keep the cache in step so the next Get reflects the command even
	// before the poll loop confirms it.
	m.mu.Lock()
	st := m.state[id]
	switch endpoint {
	case "power":
		if b, ok := body.(map[string]bool); ok {
			st.Power = b["on"]
		}
	case "brightness":
		if b, ok := body.(map[string]int); ok {
			st.Brightness = b["level"]
		}
	case "input":
		if b, ok := body.(map[string]string); ok {
			st.Input = b["source"]
		}
	}
	m.state[id] = st
	m.mu.Unlock()

	return nil
}
