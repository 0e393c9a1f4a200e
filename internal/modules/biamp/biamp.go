package biamp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/module"
)

// ModuleName is the registry key and API route prefix.
const ModuleName = "biamp"

// DeviceID is the module's single device.
const DeviceID = "biamp-dsp"

const (
	deviceType      = "conference_dsp"
	sessionTimeout  = 3 * time.Second
	defaultInterval = 5 * time.Second
)

// Module drives one DSP unit.
type Module struct {
	*module.Base

	cfg  config.BiampConfig
	addr string
}

// New creates the biamp module from configuration.
func New(cfg config.BiampConfig) *Module {
	return &Module{
		Base: module.NewBase(ModuleName, cfg.Enabled),
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
}

// Initialize registers the device and probes the DSP once. An
// unreachable DSP is recoverable.
func (m *Module) Initialize(ctx context.Context) (bool, error) {
	if err := m.BeginInitialize(); err != nil {
		return false, err
	}

	health := module.HealthHealthy
	if err := m.probe(ctx); err != nil {
		health = module.HealthOffline
	}

	m.Set().Upsert(module.DeviceInfo{
		ID:     DeviceID,
		Name:   "Conference DSP",
		Type:   deviceType,
		Health: health,
	})

	m.FinishInitialize(true)
	return true, nil
}

// StartMonitoring starts the TCP probe loop.
func (m *Module) StartMonitoring(ctx context.Context) error {
	interval := defaultInterval
	if m.cfg.PollInterval > 0 {
		interval = time.Duration(m.cfg.PollInterval) * time.Second
	}
	return m.StartLoop(ctx, interval, m.poll)
}

// StopMonitoring stops the probe loop.
func (m *Module) StopMonitoring(ctx context.Context) error {
	return m.StopLoop(ctx)
}

// Shutdown retires the module.
func (m *Module) Shutdown(ctx context.Context) error {
	m.Retire(ctx)
	return nil
}

// Properties exposes volume, mute and preset recall.
func (m *Module) Properties() map[string]module.Property {
	return map[string]module.Property{
		"volume": {
			Get: func(ctx context.Context, id string) (any, error) {
				if err := m.checkID(id); err != nil {
					return nil, err
				}
				reply, err := m.exchange(ctx, "GET volume")
				if err != nil {
					return nil, err
				}
				volume, err := strconv.Atoi(reply)
				if err != nil {
					return nil, fmt.Errorf("biamp: bad volume reply %q", reply)
				}
				return volume, nil
			},
			Set: func(ctx context.Context, id string, payload json.RawMessage) error {
				if err := m.checkID(id); err != nil {
					return err
				}
				var req struct {
					Volume *int `json:"volume"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Volume == nil {
					return fmt.Errorf("%w: volume wants {\"volume\": level}", module.ErrNotSupported)
				}
				_, err := m.exchange(ctx, fmt.Sprintf("SET volume %d", *req.Volume))
				return err
			},
		},
		"mute": {
			Get: func(ctx context.Context, id string) (any, error) {
				if err := m.checkID(id); err != nil {
					return nil, err
				}
				reply, err := m.exchange(ctx, "GET mute")
				if err != nil {
					return nil, err
				}
				return reply == "on", nil
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
				state := "off"
				if *req.Muted {
					state = "on"
				}
				_, err := m.exchange(ctx, "SET mute "+state)
				return err
			},
		},
		"preset": {
			Set: func(ctx context.Context, id string, payload json.RawMessage) error {
				if err := m.checkID(id); err != nil {
					return err
				}
				var req struct {
					Preset *int `json:"preset"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Preset == nil {
					return fmt.Errorf("%w: preset wants {\"preset\": number}", module.ErrNotSupported)
				}
				_, err := m.exchange(ctx, fmt.Sprintf("RECALL preset %d", *req.Preset))
				return err
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

// probe verifies the control port accepts connections.
func (m *Module) probe(ctx context.Context) error {
	dialer := net.Dialer{Timeout: sessionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return fmt.Errorf("biamp: dsp unreachable at %s: %w", m.addr, err)
	}
	return conn.Close()
}

// exchange runs one command in a fresh session and returns the reply
// payload after the OK marker.
func (m *Module) exchange(ctx context.Context, command string) (string, error) {
	dialer := net.Dialer{Timeout: sessionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return "", fmt.Errorf("biamp: dsp unreachable at %s: %w", m.addr, err)
	}
	defer conn.Close() //nolint:errcheck // Session is per-command

	deadline := time.Now().Add(sessionTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("biamp: setting session deadline: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", fmt.Errorf("biamp: sending %q: %w", command, err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("biamp: reading reply to %q: %w", command, err)
	}

	line = strings.TrimSpace(line)
	switch {
	case line == "OK":
		return "", nil
	case strings.HasPrefix(line, "OK "):
		return strings.TrimPrefix(line, "OK "), nil
	case strings.HasPrefix(line, "ERR"):
		return "", fmt.Errorf("%w: dsp refused %q: %s", module.ErrNotSupported, command, line)
	default:
		return "", fmt.Errorf("biamp: unexpected reply %q", line)
	}
}

// poll mirrors TCP reachability onto the device.
func (m *Module) poll(ctx context.Context) {
	health := module.HealthHealthy
	message := ""
	if err := m.probe(ctx); err != nil {
		health = module.HealthOffline
		message = err.Error()
	}

	change, changed := m.Set().SetHealth(DeviceID, health, message)
	m.Publish(change, changed)
}
