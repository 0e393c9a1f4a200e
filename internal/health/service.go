package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roomwall/roomwall-core/internal/module"
)

// Default loop intervals.
const (
	defaultPollInterval   = 5 * time.Second
	defaultUptimeInterval = time.Second
)

// Logger defines the logging interface used by the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ModuleSource is the slice of the hardware manager the service needs.
type ModuleSource interface {
	Modules() []module.Module
	Restart(ctx context.Context, name string, pause time.Duration) error
}

// ModuleChangedFunc receives the name of a module whose view changed.
type ModuleChangedFunc func(name string)

// EventFunc receives each health event as it is recorded.
type EventFunc func(Event)

// attachment pairs a module instance with its unsubscribe hook so the
// poll loop can re-subscribe when a restart swaps the instance.
type attachment struct {
	mod   module.Module
	unsub func()
}

// Service is the dual-path health aggregator.
type Service struct {
	source ModuleSource
	logger Logger

	pollInterval time.Duration
	startTime    time.Time

	mu       sync.Mutex
	views    map[string]*ModuleView
	ring     []Event
	summary  Summary
	attached map[string]attachment

	subMu       sync.Mutex
	nextSubID   int
	changedSubs map[int]ModuleChangedFunc
	eventSubs   map[int]EventFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates the aggregator with a view per known module name.
// Names that never register stay NotImplemented for the process lifetime.
func NewService(source ModuleSource, knownModules []string) *Service {
	views := make(map[string]*ModuleView, len(knownModules))
	for _, name := range knownModules {
		views[name] = &ModuleView{
			Name:        name,
			Overall:     StatusNotImplemented,
			Devices:     []DeviceView{},
			Events:      []Event{},
			LastUpdated: time.Now(),
		}
	}

	s := &Service{
		source:       source,
		logger:       noopLogger{},
		pollInterval: defaultPollInterval,
		startTime:    time.Now(),
		views:        views,
		attached:     make(map[string]attachment),
		changedSubs:  make(map[int]ModuleChangedFunc),
		eventSubs:    make(map[int]EventFunc),
	}
	s.recomputeSummaryLocked()
	return s
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetPollInterval overrides the poll interval. Call before Start.
func (s *Service) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.pollInterval = d
	}
}

// Start launches the poll and uptime loops. A second call while running
// is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)

		poll := time.NewTicker(s.pollInterval)
		defer poll.Stop()
		uptime := time.NewTicker(defaultUptimeInterval)
		defer uptime.Stop()

		// First poll runs immediately so views converge before the first tick.
		s.pollOnce(loopCtx)

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-poll.C:
				s.pollOnce(loopCtx)
			case <-uptime.C:
				s.mu.Lock()
				s.summary.Uptime = time.Since(s.startTime)
				s.mu.Unlock()
			}
		}
	}()

	s.logger.Info("health aggregation started", "poll_interval", s.pollInterval)
}

// Stop halts the loops and detaches from all module notifications.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	for name, att := range s.attached {
		att.unsub()
		delete(s.attached, name)
	}
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeModuleChanged registers a callback fired whenever a module's
// view changes. Returns an unsubscribe function.
func (s *Service) SubscribeModuleChanged(fn ModuleChangedFunc) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.changedSubs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.changedSubs, id)
	}
}

// SubscribeEvents registers a callback fired for every recorded health
// event. Returns an unsubscribe function.
func (s *Service) SubscribeEvents(fn EventFunc) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.eventSubs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.eventSubs, id)
	}
}

func (s *Service) notifyModuleChanged(name string) {
	s.subMu.Lock()
	fns := make([]ModuleChangedFunc, 0, len(s.changedSubs))
	for _, fn := range s.changedSubs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(name)
	}
}

func (s *Service) notifyEvent(ev Event) {
	s.subMu.Lock()
	fns := make([]EventFunc, 0, len(s.eventSubs))
	for _, fn := range s.eventSubs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// OnHealthChange is the event path: record the transition, patch the
// matching device in place and re-derive the module's status. Safe to
// call from any goroutine, including concurrently with a poll cycle.
func (s *Service) OnHealthChange(change module.HealthChange) {
	ts := change.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ev := Event{
		ID:         uuid.NewString(),
		Timestamp:  ts,
		Module:     change.Module,
		DeviceID:   change.DeviceID,
		DeviceName: change.DeviceName,
		Previous:   change.Previous,
		Current:    change.Current,
		Message:    change.Message,
	}

	s.mu.Lock()
	s.pushRingLocked(ev)

	view, ok := s.views[change.Module]
	if ok {
		view.Events = pushCapped(view.Events, ev, moduleEventCap)

		// Patch the device in place; an id the snapshot has not seen
		// yet is left for the next poll to pick up.
		for i := range view.Devices {
			if view.Devices[i].ID == change.DeviceID {
				view.Devices[i].Health = change.Current
				seen := ts
				view.Devices[i].LastSeen = &seen
				break
			}
		}
		if view.Overall != StatusNotImplemented {
			s.recountLocked(view)
		}
		view.LastUpdated = time.Now()
		s.recomputeSummaryLocked()
	}
	s.mu.Unlock()

	s.notifyEvent(ev)
	if ok {
		s.notifyModuleChanged(change.Module)
	}
}

// pollOnce is the poll path: reconcile subscriptions with the current
// module set, then rebuild each registered module's view from a fresh
// device snapshot. One failing module never aborts the others.
func (s *Service) pollOnce(ctx context.Context) {
	mods := s.source.Modules()

	s.reconcileSubscriptions(mods)

	var changed []string
	for _, mod := range mods {
		if s.pollModule(ctx, mod) {
			changed = append(changed, mod.Name())
		}
	}

	s.mu.Lock()
	s.markVanishedLocked(mods)
	s.recomputeSummaryLocked()
	s.mu.Unlock()

	for _, name := range changed {
		s.notifyModuleChanged(name)
	}
}

// pollModule refreshes one module's view. Reports whether the derived
// status changed.
func (s *Service) pollModule(ctx context.Context, mod module.Module) bool {
	name := mod.Name()

	if !mod.Enabled() {
		s.mu.Lock()
		view := s.ensureViewLocked(name)
		before := view.Overall
		view.Enabled = false
		view.Initialized = mod.Initialized()
		view.Overall = StatusDisabled
		view.Devices = nil
		view.DeviceCount = 0
		view.HealthyCount = 0
		view.UnhealthyCount = 0
		view.OfflineCount = 0
		view.LastUpdated = time.Now()
		s.mu.Unlock()
		return before != StatusDisabled
	}

	devices, err := mod.Devices(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.ensureViewLocked(name)
	before := view.Overall
	view.Enabled = true
	view.Initialized = mod.Initialized()

	if err != nil {
		view.Overall = StatusUnhealthy
		view.LastError = err.Error()
		view.LastUpdated = time.Now()
		s.logger.Warn("module poll failed", "module", name, "error", err)
		return before != view.Overall
	}

	view.Devices = make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		view.Devices = append(view.Devices, DeviceView{
			ID:       d.ID,
			Name:     d.Name,
			Type:     d.Type,
			Health:   d.Health,
			LastSeen: d.LastSeen,
		})
	}
	s.recountLocked(view)
	view.LastError = ""
	view.LastUpdated = time.Now()
	return before != view.Overall
}

// reconcileSubscriptions keeps exactly one health subscription per live
// module instance. Restarts swap the instance, so a stale attachment is
// dropped and a fresh one made.
func (s *Service) reconcileSubscriptions(mods []module.Module) {
	current := make(map[string]module.Module, len(mods))
	for _, mod := range mods {
		current[mod.Name()] = mod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, att := range s.attached {
		if live, ok := current[name]; !ok || live != att.mod {
			att.unsub()
			delete(s.attached, name)
		}
	}
	for name, mod := range current {
		if _, ok := s.attached[name]; !ok {
			unsub := mod.SubscribeHealth(s.OnHealthChange)
			s.attached[name] = attachment{mod: mod, unsub: unsub}
		}
	}
}

// markVanishedLocked handles modules that were registered once but have
// since been shut down and removed: they drop to Offline until a fresh
// instance registers. Never-registered names stay NotImplemented.
func (s *Service) markVanishedLocked(mods []module.Module) {
	current := make(map[string]bool, len(mods))
	for _, mod := range mods {
		current[mod.Name()] = true
	}
	for name, view := range s.views {
		if current[name] || view.Overall == StatusNotImplemented {
			continue
		}
		if view.Overall != StatusOffline {
			view.Overall = StatusOffline
			view.Initialized = false
			view.LastUpdated = time.Now()
		}
	}
}

func (s *Service) ensureViewLocked(name string) *ModuleView {
	view, ok := s.views[name]
	if !ok {
		view = &ModuleView{
			Name:    name,
			Devices: []DeviceView{},
			Events:  []Event{},
		}
		s.views[name] = view
	}
	return view
}

// recountLocked rebuilds the count partition from the device list and
// re-derives the module status.
func (s *Service) recountLocked(view *ModuleView) {
	var healthy, unhealthy, offline int
	for _, d := range view.Devices {
		switch d.Health {
		case module.HealthHealthy:
			healthy++
		case module.HealthUnhealthy:
			unhealthy++
		default:
			offline++
		}
	}
	view.DeviceCount = len(view.Devices)
	view.HealthyCount = healthy
	view.UnhealthyCount = unhealthy
	view.OfflineCount = offline
	view.Overall = deriveStatus(view.Enabled, view.Initialized, view.DeviceCount, healthy, unhealthy)
}

func (s *Service) pushRingLocked(ev Event) {
	s.ring = pushCapped(s.ring, ev, globalEventCap)
}

// pushCapped prepends an event and evicts the oldest past the limit.
func pushCapped(events []Event, ev Event, limit int) []Event {
	events = append([]Event{ev}, events...)
	if len(events) > limit {
		events = events[:limit]
	}
	return events
}

func (s *Service) recomputeSummaryLocked() {
	var sum Summary
	for _, view := range s.views {
		sum.TotalModules++
		if view.Enabled && view.Initialized {
			sum.ActiveModules++
		}
		if view.Overall == StatusHealthy {
			sum.HealthyModules++
		}
		sum.TotalDevices += view.DeviceCount
		sum.HealthyDevices += view.HealthyCount
	}
	sum.Uptime = time.Since(s.startTime)
	sum.LastUpdated = time.Now()
	s.summary = sum
}

// ModuleView returns a copy of one module's view.
func (s *Service) ModuleView(name string) (ModuleView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, ok := s.views[name]
	if !ok {
		return ModuleView{}, false
	}
	return copyView(view), true
}

// Views returns copies of all module views, sorted by name.
func (s *Service) Views() []ModuleView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ModuleView, 0, len(s.views))
	for _, view := range s.views {
		out = append(out, copyView(view))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Events returns a copy of the global ring buffer, newest first.
func (s *Service) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.ring))
	copy(out, s.ring)
	return out
}

// Summary returns a copy of the system-wide summary.
func (s *Service) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

func copyView(view *ModuleView) ModuleView {
	out := *view
	out.Devices = make([]DeviceView, len(view.Devices))
	copy(out.Devices, view.Devices)
	out.Events = make([]Event, len(view.Events))
	copy(out.Events, view.Events)
	return out
}
