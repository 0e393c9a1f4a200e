package hardware

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roomwall/roomwall-core/internal/module"
)

// Logger defines the logging interface used by the Manager.
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

// Builder constructs a fresh module instance. Registered alongside a module
// so Restart can rebuild it after shutdown retires the old instance.
type Builder func() (module.Module, error)

// Sentinel errors for manager operations.
var (
	// ErrClosed indicates the manager has been disposed and cannot be reused.
	ErrClosed = errors.New("hardware: manager closed")

	// ErrModuleNotFound indicates no module is registered under the given name.
	ErrModuleNotFound = errors.New("hardware: module not registered")

	// ErrNoBuilder indicates Restart was asked to rebuild a module without a builder.
	ErrNoBuilder = errors.New("hardware: no builder registered for module")
)

// Manager is the registry and lifecycle driver for device modules.
//
// All registry mutation and lifecycle transitions serialize on one lock so
// registration never races initialization or shutdown. Per-module backend
// calls run concurrently inside that critical section.
type Manager struct {
	logger Logger

	mu          sync.Mutex
	modules     map[string]module.Module
	builders    map[string]Builder
	initialized bool
	closed      bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		logger:   noopLogger{},
		modules:  make(map[string]module.Module),
		builders: make(map[string]Builder),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Register inserts a module into the registry keyed by its name.
// An existing entry with the same name is overwritten; this supports
// re-registration after a module shutdown.
func (m *Manager) Register(mod module.Module) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Warn("register on closed manager ignored", "module", mod.Name())
		return
	}

	if _, exists := m.modules[mod.Name()]; exists {
		m.logger.Info("module re-registered", "module", mod.Name())
	}
	m.modules[mod.Name()] = mod
}

// RegisterBuilder records how to rebuild a module for Restart.
func (m *Manager) RegisterBuilder(name string, build Builder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builders[name] = build
}

// Module returns the registered module with the given name.
func (m *Manager) Module(name string) (module.Module, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modules[name]
	return mod, ok
}

// Modules returns a snapshot of all registered modules, sorted by name.
func (m *Manager) Modules() []module.Module {
	m.mu.Lock()
	defer m.mu.Unlock()

	mods := make([]module.Module, 0, len(m.modules))
	for _, mod := range m.modules {
		mods = append(mods, mod)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Name() < mods[j].Name() })
	return mods
}

// InitializeAll initializes every registered module concurrently.
//
// A module that fails or panics is logged and counted and never aborts
// initialization of its siblings. Returns true iff at least one module
// succeeded. A second call after a successful first is a no-op returning
// true without re-initializing.
func (m *Manager) InitializeAll(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	if m.initialized {
		return true
	}

	var (
		wg        sync.WaitGroup
		resultMu  sync.Mutex
		succeeded int
		failed    int
	)

	for name, mod := range m.modules {
		wg.Add(1)
		go func(name string, mod module.Module) {
			defer wg.Done()
			ok, err := m.initializeOne(ctx, name, mod)

			resultMu.Lock()
			defer resultMu.Unlock()
			if ok {
				succeeded++
			} else {
				failed++
				if err != nil {
					m.logger.Error("module initialization failed", "module", name, "error", err)
				} else {
					m.logger.Warn("module initialization declined", "module", name)
				}
			}
		}(name, mod)
	}
	wg.Wait()

	m.logger.Info("module initialization complete",
		"succeeded", succeeded,
		"failed", failed,
	)

	if succeeded > 0 {
		m.initialized = true
		return true
	}
	return false
}

// initializeOne calls Initialize with panic isolation.
func (m *Manager) initializeOne(ctx context.Context, name string, mod module.Module) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("panic during initialize: %v", r)
		}
	}()
	return mod.Initialize(ctx)
}

// StartAllMonitoring starts the monitor loop of every initialized module.
// Per-module failures are logged, never propagated.
func (m *Manager) StartAllMonitoring(ctx context.Context) {
	for _, mod := range m.Modules() {
		if !mod.Initialized() {
			continue
		}
		if err := mod.StartMonitoring(ctx); err != nil {
			m.logger.Warn("failed to start monitoring", "module", mod.Name(), "error", err)
		}
	}
}

// StopAllMonitoring stops the monitor loop of every registered module.
// Per-module failures are logged, never propagated.
func (m *Manager) StopAllMonitoring(ctx context.Context) {
	for _, mod := range m.Modules() {
		if err := mod.StopMonitoring(ctx); err != nil {
			m.logger.Warn("failed to stop monitoring", "module", mod.Name(), "error", err)
		}
	}
}

// ShutdownModule shuts down a single module and removes it from the
// registry, leaving siblings untouched. Used for live disable.
func (m *Manager) ShutdownModule(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, ok := m.modules[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}

	delete(m.modules, name)
	if err := m.shutdownOne(ctx, mod); err != nil {
		m.logger.Warn("module shutdown reported error", "module", name, "error", err)
		return err
	}

	m.logger.Info("module shut down", "module", name)
	return nil
}

// ShutdownAll shuts down every module and clears the registry.
//
// The initialized flag resets so a later InitializeAll is not a no-op, and
// the lock survives so the manager stays reusable for mode switches.
func (m *Manager) ShutdownAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownAllLocked(ctx)
}

func (m *Manager) shutdownAllLocked(ctx context.Context) {
	for name, mod := range m.modules {
		if err := m.shutdownOne(ctx, mod); err != nil {
			m.logger.Warn("module shutdown reported error", "module", name, "error", err)
		}
	}
	m.modules = make(map[string]module.Module)
	m.initialized = false
	m.logger.Info("all modules shut down")
}

// shutdownOne calls Shutdown with panic isolation.
func (m *Manager) shutdownOne(ctx context.Context, mod module.Module) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during shutdown: %v", r)
		}
	}()
	return mod.Shutdown(ctx)
}

// Restart rebuilds one module: shutdown and removal, a pause, then a fresh
// instance from the registered builder, initialized and monitoring again.
// Best effort: the first failing step is returned.
func (m *Manager) Restart(ctx context.Context, name string, pause time.Duration) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	build, hasBuilder := m.builders[name]
	mod, registered := m.modules[name]
	if registered {
		delete(m.modules, name)
	}
	m.mu.Unlock()

	if !registered && !hasBuilder {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}

	if registered {
		if err := m.shutdownOne(ctx, mod); err != nil {
			m.logger.Warn("shutdown during restart reported error", "module", name, "error", err)
		}
	}

	if !hasBuilder {
		return fmt.Errorf("%w: %s", ErrNoBuilder, name)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(pause):
	}

	fresh, err := build()
	if err != nil {
		return fmt.Errorf("rebuilding module %s: %w", name, err)
	}

	m.Register(fresh)

	ok, err := m.initializeOne(ctx, name, fresh)
	if err != nil {
		return fmt.Errorf("re-initializing module %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("module %s declined re-initialization", name)
	}

	if err := fresh.StartMonitoring(ctx); err != nil {
		return fmt.Errorf("restarting monitoring for %s: %w", name, err)
	}

	m.logger.Info("module restarted", "module", name)
	return nil
}

// AllDevices returns every module's device snapshot keyed by module name.
// Only initialized modules are queried; a module failing here yields an
// empty list for that module, never a global failure.
func (m *Manager) AllDevices(ctx context.Context) map[string][]module.DeviceInfo {
	mods := m.Modules()

	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
	)
	result := make(map[string][]module.DeviceInfo, len(mods))

	for _, mod := range mods {
		if !mod.Initialized() {
			continue
		}
		wg.Add(1)
		go func(mod module.Module) {
			defer wg.Done()

			devices, err := mod.Devices(ctx)
			if err != nil {
				m.logger.Warn("device snapshot failed", "module", mod.Name(), "error", err)
				devices = []module.DeviceInfo{}
			}
			if devices == nil {
				devices = []module.DeviceInfo{}
			}

			resultMu.Lock()
			result[mod.Name()] = devices
			resultMu.Unlock()
		}(mod)
	}
	wg.Wait()

	return result
}

// Initialized reports whether a successful InitializeAll has run.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// ModuleCount returns the number of registered modules.
func (m *Manager) ModuleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.modules)
}

// Close is terminal: shuts everything down and marks the manager unusable.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.shutdownAllLocked(ctx)
	m.closed = true
	return nil
}
