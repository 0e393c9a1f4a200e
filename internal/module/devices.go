package module

import (
	"sort"
	"sync"
	"time"
)

// DeviceSet tracks the devices a module currently knows about along with
// their health. All methods are safe for concurrent use; mutations report
// the resulting transition so callers can publish it.
type DeviceSet struct {
	mu      sync.RWMutex
	devices map[string]DeviceInfo
}

// NewDeviceSet creates an empty device set.
func NewDeviceSet() *DeviceSet {
	return &DeviceSet{
		devices: make(map[string]DeviceInfo),
	}
}

// Upsert inserts or updates a device and stamps its last-seen time.
// It returns the health transition and whether the health actually changed
// (a newly inserted device counts as changed).
func (s *DeviceSet) Upsert(info DeviceInfo) (HealthChange, bool) {
	now := time.Now().UTC()
	info.LastSeen = &now

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.devices[info.ID]
	s.devices[info.ID] = info

	change := HealthChange{
		DeviceID:   info.ID,
		DeviceName: info.Name,
		Current:    info.Health,
		Timestamp:  now,
	}
	if existed {
		change.Previous = prev.Health
		return change, prev.Health != info.Health
	}
	return change, true
}

// SetHealth updates one device's health in place.
// Unknown IDs are ignored and reported as unchanged.
func (s *DeviceSet) SetHealth(id string, health Health, message string) (HealthChange, bool) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[id]
	if !ok {
		return HealthChange{}, false
	}

	prev := dev.Health
	dev.Health = health
	dev.LastSeen = &now
	s.devices[id] = dev

	change := HealthChange{
		DeviceID:   id,
		DeviceName: dev.Name,
		Previous:   prev,
		Current:    health,
		Timestamp:  now,
		Message:    message,
	}
	return change, prev != health
}

// Remove deletes a device that vanished from discovery.
func (s *DeviceSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[id]; !ok {
		return false
	}
	delete(s.devices, id)
	return true
}

// Get returns one device by ID.
func (s *DeviceSet) Get(id string) (DeviceInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[id]
	return dev, ok
}

// Snapshot returns all devices sorted by ID.
func (s *DeviceSet) Snapshot() []DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]DeviceInfo, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// IDs returns the current device IDs, unsorted.
func (s *DeviceSet) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked devices.
func (s *DeviceSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}
