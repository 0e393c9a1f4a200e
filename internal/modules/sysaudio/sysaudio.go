package sysaudio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/mixer"
	"github.com/roomwall/roomwall-core/internal/module"
)

// ModuleName is the registry key and API route prefix.
const ModuleName = "sysaudio"

// DeviceID is the module's single device.
const DeviceID = "system-audio"

const (
	deviceType      = "system_audio"
	defaultInterval = 5 * time.Second
)

// Module drives the default system sink.
type Module struct {
	*module.Base

	cfg config.SystemAudioConfig
	mix mixer.Mixer
}

// New creates the system audio module around a mixer backend.
func New(cfg config.SystemAudioConfig, mix mixer.Mixer) *Module {
	return &Module{
		Base: module.NewBase(ModuleName, cfg.Enabled),
		cfg:  cfg,
		mix:  mix,
	}
}

// Initialize verifies the mixer answers and registers the device.
// A silent mixer is recoverable; the poll loop keeps probing.
func (m *Module) Initialize(ctx context.Context) (bool, error) {
	if err := m.BeginInitialize(); err != nil {
		return false, err
	}

	health := module.HealthHealthy
	if err := m.mix.Check(ctx); err != nil {
		health = module.HealthUnhealthy
	}

	m.Set().Upsert(module.DeviceInfo{
		ID:     DeviceID,
		Name:   "System Audio",
		Type:   deviceType,
		Health: health,
	})

	m.FinishInitialize(true)
	return true, nil
}

// StartMonitoring starts the mixer poll loop.
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

// Shutdown retires the module. The mixer belongs to the OS; nothing to
// release.
func (m *Module) Shutdown(ctx context.Context) error {
	m.Retire(ctx)
	return nil
}

// Properties exposes master volume and mute.
func (m *Module) Properties() map[string]module.Property {
	return map[string]module.Property{
		"volume": {
			Get: func(ctx context.Context, id string) (any, error) {
				if err := m.checkID(id); err != nil {
					return nil, err
				}
				return m.mix.Volume(ctx, mixer.KindSink, "")
			},
			Set: func(ctx context.Context, id string, payload json.RawMessage) error {
				if err := m.checkID(id); err != nil {
					return err
				}
				var req struct {
					Volume *int `json:"volume"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Volume == nil {
					return fmt.Errorf("%w: volume wants {\"volume\": percent}", module.ErrNotSupported)
				}
				return m.mix.SetVolume(ctx, mixer.KindSink, "", *req.Volume)
			},
		},
		"mute": {
			Get: func(ctx context.Context, id string) (any, error) {
				if err := m.checkID(id); err != nil {
					return nil, err
				}
				return m.mix.Muted(ctx, mixer.KindSink, "")
			},
			Set: func(ctx context.Context, id string, payload json.RawMessage) error {
				if err := m.checkID(id); err != nil {
					return err
				}
				var req struct {
					Muted *bool `json:"muted"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Muted == nil {
					return fmt.Errorf("%w: mute wants {\"muted\": bool}", module.ErrNotSupported)
				}
				return m.mix.SetMuted(ctx, mixer.KindSink, "", *req.Muted)
			},
		},
	}
}

func (m *Module) checkID(id string) error {
	if id != DeviceID {
		return module.ErrDeviceNotFound
	}
	return nil
}

// poll mirrors mixer reachability onto the device.
func (m *Module) poll(ctx context.Context) {
	health := module.HealthHealthy
	message := ""
	if err := m.mix.Check(ctx); err != nil {
		health = module.HealthUnhealthy
		message = err.Error()
	}

	change, changed := m.Set().SetHealth(DeviceID, health, message)
	m.Publish(change, changed)
}
