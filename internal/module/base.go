package module

import (
	"context"
	"sync"
	"time"
)

// Base carries the lifecycle state common to every module implementation:
// name, enabled flag, initialize-once guard, retirement, the monitor loop
// and the health-change notifier. Concrete modules embed it and supply the
// backend behaviour.
type Base struct {
	name    string
	enabled bool

	set      *DeviceSet
	notifier *Notifier

	mu          sync.Mutex
	initialized bool
	initCalled  bool
	retired     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewBase creates the shared module state.
func NewBase(name string, enabled bool) *Base {
	return &Base{
		name:     name,
		enabled:  enabled,
		set:      NewDeviceSet(),
		notifier: NewNotifier(),
	}
}

// Name returns the module's stable identity.
func (b *Base) Name() string { return b.name }

// Enabled reports the configured enable state.
func (b *Base) Enabled() bool { return b.enabled }

// Initialized reports whether initialization completed successfully.
func (b *Base) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// Set returns the module's device set.
func (b *Base) Set() *DeviceSet { return b.set }

// SubscribeHealth registers a health-change callback.
func (b *Base) SubscribeHealth(fn HealthChangedFunc) func() {
	return b.notifier.Subscribe(fn)
}

// Publish fires a health transition to subscribers when changed is true.
// The module name is stamped on the change before delivery.
func (b *Base) Publish(change HealthChange, changed bool) {
	if !changed {
		return
	}
	change.Module = b.name
	b.notifier.Notify(change)
}

// BeginInitialize enforces the initialize-at-most-once-per-registration
// contract. Call FinishInitialize with the outcome afterwards.
func (b *Base) BeginInitialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.retired {
		return ErrRetired
	}
	if b.initCalled {
		return ErrAlreadyInitialized
	}
	b.initCalled = true
	return nil
}

// FinishInitialize records the initialization outcome.
func (b *Base) FinishInitialize(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = ok
}

// StartLoop starts the monitor loop at the given interval. Idempotent: a
// second call while the loop runs is a no-op. The loop exits on context
// cancellation or StopLoop.
func (b *Base) StartLoop(ctx context.Context, interval time.Duration, poll func(context.Context)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.retired {
		return ErrRetired
	}
	if !b.initialized {
		return ErrNotInitialized
	}
	if b.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.cancel = cancel
	b.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Immediate first pass so health converges before the first tick.
		poll(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				poll(loopCtx)
			}
		}
	}()

	return nil
}

// StopLoop stops the monitor loop and waits for it to exit. Idempotent.
func (b *Base) StopLoop(ctx context.Context) error {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.cancel = nil
	b.done = nil
	b.mu.Unlock()

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

// Retire permanently retires the module: stops the loop, clears the
// initialized flag and drops all health subscribers.
func (b *Base) Retire(ctx context.Context) {
	_ = b.StopLoop(ctx) //nolint:errcheck // Retirement proceeds even if the loop is slow to exit

	b.mu.Lock()
	b.retired = true
	b.initialized = false
	b.mu.Unlock()

	b.notifier.Close()
}

// Retired reports whether the module has been shut down.
func (b *Base) Retired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.retired
}

// Devices returns the current snapshot of the device set.
// Satisfies the Module contract without blocking on the backend.
func (b *Base) Devices(_ context.Context) ([]DeviceInfo, error) {
	return b.set.Snapshot(), nil
}
