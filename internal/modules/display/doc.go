// Package display controls networked display panels over their local
// HTTP controllers. Each configured panel is one device; a poll loop
// probes panel status and publishes health transitions, and power,
// brightness and input are exposed as controllable properties.
package display
