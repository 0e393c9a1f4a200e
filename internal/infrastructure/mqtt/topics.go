package mqtt

import "fmt"

// Topic prefixes. All topics live under the roomwall/ namespace.
const (
	// TopicPrefix is the base for all topics.
	TopicPrefix = "roomwall"

	// TopicPrefixHealth is the base for health topics.
	TopicPrefixHealth = "roomwall/health"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "roomwall/system"
)

// Topics provides builders for Roomwall MQTT topics so topic naming
// stays consistent across publishers and subscribers.
type Topics struct{}

// ModuleHealth returns the retained per-module health topic.
//
// Example: roomwall/health/module/lighting
func (Topics) ModuleHealth(moduleName string) string {
	return fmt.Sprintf("%s/module/%s", TopicPrefixHealth, moduleName)
}

// DeviceHealth returns the retained per-device health topic.
//
// Example: roomwall/health/device/display/panel-front
func (Topics) DeviceHealth(moduleName, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/%s", TopicPrefixHealth, moduleName, deviceID)
}

// HealthEvent returns the topic for the health transition event stream.
//
// Example: roomwall/health/event
func (Topics) HealthEvent() string {
	return fmt.Sprintf("%s/event", TopicPrefixHealth)
}

// HealthSummary returns the retained system-wide summary topic.
//
// Example: roomwall/health/summary
func (Topics) HealthSummary() string {
	return fmt.Sprintf("%s/summary", TopicPrefixHealth)
}

// SystemStatus returns the liveness topic carrying online/offline
// payloads and the Last Will.
//
// Example: roomwall/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllModuleHealth returns a pattern matching every module health topic.
//
// Pattern: roomwall/health/module/+
func (Topics) AllModuleHealth() string {
	return fmt.Sprintf("%s/module/+", TopicPrefixHealth)
}

// AllDeviceHealth returns a pattern matching every device health topic.
//
// Pattern: roomwall/health/device/+/+
func (Topics) AllDeviceHealth() string {
	return fmt.Sprintf("%s/device/+/+", TopicPrefixHealth)
}

// AllTopics returns a pattern matching all Roomwall topics.
//
// Pattern: roomwall/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
