package lighting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roomwall/roomwall-core/internal/dmx"
	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/module"
)

// ModuleName is the registry key and API route prefix.
const ModuleName = "lighting"

const (
	deviceType   = "dmx_fixture"
	pollInterval = 5 * time.Second
)

// Module owns the DMX transmitter for the room's fixtures.
type Module struct {
	*module.Base

	cfg config.LightingConfig
	tx  *dmx.Transmitter
}

// New creates the lighting module around a prepared transmitter.
// The caller builds the transmitter so the adapter and store can be
// swapped in tests.
func New(cfg config.LightingConfig, tx *dmx.Transmitter) *Module {
	return &Module{
		Base: module.NewBase(ModuleName, cfg.Enabled),
		cfg:  cfg,
		tx:   tx,
	}
}

// Initialize restores persisted fixture state, registers the configured
// fixtures and starts the transmit loop. A fixture with an invalid
// channel mapping is an unrecoverable configuration error.
func (m *Module) Initialize(ctx context.Context) (bool, error) {
	if err := m.BeginInitialize(); err != nil {
		return false, err
	}

	// State loss is recoverable; the room just starts dark.
	_ = m.tx.Restore(ctx) //nolint:errcheck // Invalid rows already logged by the transmitter

	for _, fc := range m.cfg.Fixtures {
		f := dmx.Fixture{
			ID:           fc.ID,
			Name:         fc.Name,
			StartChannel: fc.StartChannel,
			ChannelOrder: fc.ChannelOrder,
			Brightness:   1,
		}
		if err := m.tx.AddFixture(f); err != nil {
			m.FinishInitialize(false)
			return false, fmt.Errorf("lighting: fixture %s: %w", fc.ID, err)
		}
	}

	m.FinishInitialize(true)
	m.registerFixtures()
	m.tx.Start(ctx)
	m.poll(ctx)
	return true, nil
}

func (m *Module) registerFixtures() {
	for _, f := range m.tx.Fixtures() {
		m.Set().Upsert(module.DeviceInfo{
			ID:     f.ID,
			Name:   f.Name,
			Type:   deviceType,
			Health: module.HealthHealthy,
		})
	}
}

// StartMonitoring starts the adapter-health poll loop.
func (m *Module) StartMonitoring(ctx context.Context) error {
	return m.StartLoop(ctx, pollInterval, m.poll)
}

// StopMonitoring stops the poll loop. The transmit loop keeps running;
// lights stay on while monitoring is paused.
func (m *Module) StopMonitoring(ctx context.Context) error {
	return m.StopLoop(ctx)
}

// Shutdown stops transmission, closes the adapter and retires the module.
func (m *Module) Shutdown(ctx context.Context) error {
	m.Retire(ctx)
	return m.tx.Close()
}

// Properties exposes fixture color and brightness.
func (m *Module) Properties() map[string]module.Property {
	return map[string]module.Property{
		"color": {
			Get: func(_ context.Context, id string) (any, error) {
				f, ok := m.tx.Fixture(id)
				if !ok {
					return nil, module.ErrDeviceNotFound
				}
				return f.Color, nil
			},
			Set: func(ctx context.Context, id string, payload json.RawMessage) error {
				var color dmx.Color
				if err := json.Unmarshal(payload, &color); err != nil {
					return fmt.Errorf("%w: color wants {\"r\",\"g\",\"b\",\"w\"}", module.ErrNotSupported)
				}
				return m.mapErr(m.tx.SetColor(ctx, id, color))
			},
		},
		"brightness": {
			Get: func(_ context.Context, id string) (any, error) {
				f, ok := m.tx.Fixture(id)
				if !ok {
					return nil, module.ErrDeviceNotFound
				}
				return f.Brightness, nil
			},
			Set: func(ctx context.Context, id string, payload json.RawMessage) error {
				var req struct {
					Brightness *float64 `json:"brightness"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Brightness == nil {
					return fmt.Errorf("%w: brightness wants {\"brightness\": 0..1}", module.ErrNotSupported)
				}
				return m.mapErr(m.tx.SetBrightness(ctx, id, *req.Brightness))
			},
		},
	}
}

// mapErr translates transmitter sentinels onto module sentinels.
func (m *Module) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dmx.ErrUnknownFixture) {
		return module.ErrDeviceNotFound
	}
	return err
}

// poll mirrors adapter health onto every fixture. One adapter drives
// the whole universe, so all fixtures share its fate.
func (m *Module) poll(_ context.Context) {
	health := module.HealthHealthy
	message := ""
	if !m.tx.Healthy() {
		health = module.HealthOffline
		message = "dmx adapter write failures"
	}

	for _, id := range m.Set().IDs() {
		change, changed := m.Set().SetHealth(id, health, message)
		m.Publish(change, changed)
	}
}
