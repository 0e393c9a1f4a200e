// Package module defines the capability contract shared by every hardware
// module in Roomwall Core.
//
// A module owns one family of physical devices (displays, cameras, lighting
// fixtures, audio endpoints, the conferencing DSP) and presents a uniform
// lifecycle to the orchestrator:
//
//	Register → Initialize → StartMonitoring → StopMonitoring → Shutdown
//
// Initialize acquires backend resources and may be called at most once per
// registration; Shutdown permanently retires the instance. A module that
// needs to come back is rebuilt and re-registered.
//
// Device health is backend truth: modules report Healthy, Unhealthy or
// Offline per device and fire best-effort change notifications. Consumers
// must not assume every transition is observed; polling converges on the
// same state.
package module
