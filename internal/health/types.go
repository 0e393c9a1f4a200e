package health

import (
	"time"

	"github.com/roomwall/roomwall-core/internal/module"
)

// ModuleStatus is the derived per-module health state.
type ModuleStatus string

const (
	StatusNotImplemented ModuleStatus = "not_implemented"
	StatusDisabled       ModuleStatus = "disabled"
	StatusInitializing   ModuleStatus = "initializing"
	StatusHealthy        ModuleStatus = "healthy"
	StatusDegraded       ModuleStatus = "degraded"
	StatusUnhealthy      ModuleStatus = "unhealthy"
	StatusOffline        ModuleStatus = "offline"
)

// Ring buffer and per-module event list capacities.
const (
	globalEventCap = 100
	moduleEventCap = 50
)

// DeviceView is one device as seen by the aggregator.
type DeviceView struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Health   module.Health `json:"health"`
	LastSeen *time.Time    `json:"last_seen,omitempty"`
}

// Event is an immutable record of one device health transition.
type Event struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Module     string        `json:"module"`
	DeviceID   string        `json:"device_id"`
	DeviceName string        `json:"device_name"`
	Previous   module.Health `json:"previous"`
	Current    module.Health `json:"current"`
	Message    string        `json:"message,omitempty"`
}

// ModuleView is the per-module aggregate. Created once per known module
// name at service construction and mutated for the life of the process.
type ModuleView struct {
	Name           string       `json:"name"`
	Enabled        bool         `json:"enabled"`
	Initialized    bool         `json:"initialized"`
	Overall        ModuleStatus `json:"overall"`
	DeviceCount    int          `json:"device_count"`
	HealthyCount   int          `json:"healthy_count"`
	UnhealthyCount int          `json:"unhealthy_count"`
	OfflineCount   int          `json:"offline_count"`
	Devices        []DeviceView `json:"devices"`
	Events         []Event      `json:"events"`
	LastUpdated    time.Time    `json:"last_updated"`
	LastError      string       `json:"last_error,omitempty"`
}

// Summary is the system-wide aggregate, recomputed after every change.
type Summary struct {
	TotalModules   int           `json:"total_modules"`
	ActiveModules  int           `json:"active_modules"`
	HealthyModules int           `json:"healthy_modules"`
	TotalDevices   int           `json:"total_devices"`
	HealthyDevices int           `json:"healthy_devices"`
	Uptime         time.Duration `json:"uptime"`
	LastUpdated    time.Time     `json:"last_updated"`
}

// Result is the uniform return value of diagnostic actions. A failing
// diagnostic reports Success=false instead of returning an error.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// deriveStatus computes the module status from the enable/init flags
// and the device health distribution. Evaluation order matters:
// disabled wins over everything, then uninitialized, then counts.
func deriveStatus(enabled, initialized bool, total, healthy, unhealthy int) ModuleStatus {
	switch {
	case !enabled:
		return StatusDisabled
	case !initialized:
		return StatusInitializing
	case total == 0:
		return StatusHealthy
	case healthy == total:
		return StatusHealthy
	case healthy > 0:
		return StatusDegraded
	case unhealthy > 0:
		return StatusUnhealthy
	default:
		return StatusOffline
	}
}
