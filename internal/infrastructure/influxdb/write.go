package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/roomwall/roomwall-core/internal/health"
)

// WriteHealthTransition records one device health transition.
//
// Tags carry module/device identity for querying; the numeric health
// field makes transitions chartable (1 healthy, 0 unhealthy, -1 offline).
func (c *Client) WriteHealthTransition(ev health.Event) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_health",
		map[string]string{
			"module":    ev.Module,
			"device_id": ev.DeviceID,
		},
		map[string]interface{}{
			"health":   healthValue(string(ev.Current)),
			"previous": string(ev.Previous),
			"current":  string(ev.Current),
		},
		ev.Timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteSystemSummary records a snapshot of the system-wide summary.
func (c *Client) WriteSystemSummary(sum health.Summary) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"system_health",
		map[string]string{},
		map[string]interface{}{
			"total_modules":   sum.TotalModules,
			"active_modules":  sum.ActiveModules,
			"healthy_modules": sum.HealthyModules,
			"total_devices":   sum.TotalDevices,
			"healthy_devices": sum.HealthyDevices,
			"uptime_seconds":  sum.Uptime.Seconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteModuleHealth records one module's derived status and counts.
func (c *Client) WriteModuleHealth(view health.ModuleView) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"module_health",
		map[string]string{
			"module": view.Name,
			"status": string(view.Overall),
		},
		map[string]interface{}{
			"device_count":    view.DeviceCount,
			"healthy_count":   view.HealthyCount,
			"unhealthy_count": view.UnhealthyCount,
			"offline_count":   view.OfflineCount,
		},
		view.LastUpdated,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// healthValue maps a health string to a chartable number.
func healthValue(health string) int {
	switch health {
	case "healthy":
		return 1
	case "unhealthy":
		return 0
	default:
		return -1
	}
}
