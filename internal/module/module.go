package module

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Health is the backend-reported per-device state.
type Health string

// Health constants.
const (
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
	HealthOffline   Health = "offline"
)

// DeviceInfo is a point-in-time description of one device.
// Identity is ID, unique within a module and stable across polls.
type DeviceInfo struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     string     `json:"device_type"`
	Health   Health     `json:"health"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// HealthChange describes one device health transition.
type HealthChange struct {
	Module     string    `json:"module"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Previous   Health    `json:"previous"`
	Current    Health    `json:"current"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message,omitempty"`
}

// HealthChangedFunc receives device health transitions.
// It may be invoked from any goroutine, including a module's monitor loop.
type HealthChangedFunc func(change HealthChange)

// Module is the capability contract every hardware module implements.
type Module interface {
	// Name is the stable identity used as registry key and API route prefix.
	Name() string

	// Enabled reports whether the module is switched on in configuration.
	Enabled() bool

	// Initialized reports whether Initialize has completed successfully.
	Initialized() bool

	// Initialize acquires backend resources (opens a device, starts a
	// subprocess, opens a serial handle). It returns false on recoverable
	// failure and an error on unrecoverable failure. Safe to call at most
	// once per registration.
	Initialize(ctx context.Context) (bool, error)

	// StartMonitoring starts the background health poll loop. Idempotent.
	StartMonitoring(ctx context.Context) error

	// StopMonitoring stops the background poll loop. Idempotent.
	StopMonitoring(ctx context.Context) error

	// Shutdown releases all backend resources and permanently retires the
	// module. A retired module must not be reused.
	Shutdown(ctx context.Context) error

	// Devices returns a point-in-time snapshot. Implementations must not
	// block on network calls beyond their own bounded timeout.
	Devices(ctx context.Context) ([]DeviceInfo, error)

	// SubscribeHealth registers a health-change callback and returns its
	// unsubscribe function. All subscriptions are dropped automatically
	// when the module shuts down.
	SubscribeHealth(fn HealthChangedFunc) (unsubscribe func())
}

// Property is one externally controllable or readable device property
// (brightness, ptz, color, volume, mute, ...). Either accessor may be nil.
type Property struct {
	Get func(ctx context.Context, deviceID string) (any, error)
	Set func(ctx context.Context, deviceID string, payload json.RawMessage) error
}

// PropertyProvider is implemented by modules that expose device properties.
// The API layer derives GET/PUT routes from the returned map, so dispatch
// stays registry-driven rather than type-probing.
type PropertyProvider interface {
	Properties() map[string]Property
}

// DeviceEnabler is implemented by modules that support enabling and
// disabling individual devices.
type DeviceEnabler interface {
	SetDeviceEnabled(ctx context.Context, deviceID string, enabled bool) error
}

// Sentinel errors shared across module implementations.
var (
	// ErrDeviceNotFound indicates the device ID is unknown to the module.
	ErrDeviceNotFound = errors.New("module: device not found")

	// ErrNotSupported indicates the operation is not supported by the device.
	ErrNotSupported = errors.New("module: operation not supported")

	// ErrRetired indicates the module has been shut down and cannot be reused.
	ErrRetired = errors.New("module: module has been shut down")

	// ErrAlreadyInitialized indicates Initialize was called twice for one registration.
	ErrAlreadyInitialized = errors.New("module: already initialized")

	// ErrNotInitialized indicates an operation requires a successful Initialize first.
	ErrNotInitialized = errors.New("module: not initialized")
)
