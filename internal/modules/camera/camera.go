package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/roomwall/roomwall-core/internal/camerad"
	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/infrastructure/database"
	"github.com/roomwall/roomwall-core/internal/module"
)

// ModuleName is the registry key and API route prefix.
const ModuleName = "camera"

const (
	deviceType      = "ptz_camera"
	defaultInterval = 5 * time.Second
)

// Module proxies camera control to the supervised controller process.
type Module struct {
	*module.Base

	cfg  config.CameraConfig
	db   *database.DB
	ctrl *camerad.Controller

	idmap     *camerad.IDMap
	exhausted atomic.Bool
}

// New creates the camera module. The controller child is not launched
// until Initialize.
func New(cfg config.CameraConfig, db *database.DB) *Module {
	m := &Module{
		Base: module.NewBase(ModuleName, cfg.Enabled),
		cfg:  cfg,
		db:   db,
	}
	m.ctrl = camerad.NewController(cfg, m.onExhausted)
	return m
}

// SetLogger sets the logger for the controller supervisor.
func (m *Module) SetLogger(logger camerad.Logger) {
	m.ctrl.SetLogger(logger)
}

// Initialize loads the ID map and launches the controller. A launch
// failure is recoverable; a broken ID map table is not.
func (m *Module) Initialize(ctx context.Context) (bool, error) {
	if err := m.BeginInitialize(); err != nil {
		return false, err
	}

	idmap, err := camerad.NewIDMap(ctx, m.db)
	if err != nil {
		m.FinishInitialize(false)
		return false, fmt.Errorf("camera: loading id map: %w", err)
	}
	m.idmap = idmap

	if err := m.ctrl.Start(ctx); err != nil {
		m.FinishInitialize(false)
		return false, nil
	}

	m.FinishInitialize(true)
	m.poll(ctx)
	return true, nil
}

// StartMonitoring starts the controller/camera poll loop.
func (m *Module) StartMonitoring(ctx context.Context) error {
	interval := defaultInterval
	if m.cfg.HealthInterval > 0 {
		interval = time.Duration(m.cfg.HealthInterval) * time.Second
	}
	return m.StartLoop(ctx, interval, m.poll)
}

// StopMonitoring stops the poll loop.
func (m *Module) StopMonitoring(ctx context.Context) error {
	return m.StopLoop(ctx)
}

// Shutdown stops the controller child and retires the module.
func (m *Module) Shutdown(ctx context.Context) error {
	m.Retire(ctx)
	return m.ctrl.Stop()
}

// onExhausted fires when the supervisor gives up on the controller.
func (m *Module) onExhausted() {
	m.exhausted.Store(true)
	for _, id := range m.Set().IDs() {
		change, changed := m.Set().SetHealth(id, module.HealthOffline, "controller restart budget exhausted")
		m.Publish(change, changed)
	}
}

// Properties exposes the relayed camera controls.
func (m *Module) Properties() map[string]module.Property {
	return map[string]module.Property{
		"ptz":      m.relayProperty("ptz"),
		"tracking": m.relayProperty("tracking"),
		"framing":  m.relayProperty("framing"),
	}
}

// relayProperty builds a Get/Set pair that forwards to the controller
// endpoint of the same name, translating camera names to hardware IDs.
func (m *Module) relayProperty(endpoint string) module.Property {
	return module.Property{
		Get: func(ctx context.Context, id string) (any, error) {
			resp, err := m.relay(ctx, http.MethodGet, id, endpoint, nil)
			if err != nil {
				return nil, err
			}
			return resp, nil
		},
		Set: func(ctx context.Context, id string, payload json.RawMessage) error {
			_, err := m.relay(ctx, http.MethodPost, id, endpoint, payload)
			return err
		},
	}
}

// relay forwards one request for a named camera and maps the reply.
func (m *Module) relay(ctx context.Context, method, cameraName, endpoint string, body []byte) (json.RawMessage, error) {
	if m.exhausted.Load() {
		return nil, fmt.Errorf("%w: camera controller gave up", module.ErrRetired)
	}

	hardwareID, ok := m.idmap.HardwareID(cameraName)
	if !ok {
		return nil, module.ErrDeviceNotFound
	}

	path := fmt.Sprintf("/cameras/%s/%s", hardwareID, endpoint)
	resp, err := m.ctrl.Client().Do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, module.ErrDeviceNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: controller rejected %s payload", module.ErrNotSupported, endpoint)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("camera: controller answered %d for %s", resp.StatusCode, endpoint)
	}
	return resp.Body, nil
}

// poll reconciles devices against the controller's enumeration.
func (m *Module) poll(ctx context.Context) {
	if m.exhausted.Load() {
		return
	}

	if !m.ctrl.Running() {
		for _, id := range m.Set().IDs() {
			change, changed := m.Set().SetHealth(id, module.HealthUnhealthy, "controller not running")
			m.Publish(change, changed)
		}
		return
	}

	cameras, err := m.ctrl.Client().ListCameras(ctx)
	if err != nil {
		for _, id := range m.Set().IDs() {
			change, changed := m.Set().SetHealth(id, module.HealthUnhealthy, err.Error())
			m.Publish(change, changed)
		}
		return
	}

	seen := make(map[string]bool, len(cameras))
	for _, cam := range cameras {
		name, err := m.idmap.Resolve(ctx, cam.HardwareID)
		if err != nil {
			continue
		}
		seen[name] = true

		health := module.HealthHealthy
		if !cam.Connected {
			health = module.HealthUnhealthy
		}
		change, changed := m.Set().Upsert(module.DeviceInfo{
			ID:     name,
			Name:   cam.Model + " " + name,
			Type:   deviceType,
			Health: health,
		})
		m.Publish(change, changed)
	}

	// Cameras the controller no longer enumerates go offline but keep
	// their names for when the hardware returns.
	for _, id := range m.Set().IDs() {
		if !seen[id] {
			change, changed := m.Set().SetHealth(id, module.HealthOffline, "not enumerated")
			m.Publish(change, changed)
		}
	}
}
