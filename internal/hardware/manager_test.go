package hardware

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roomwall/roomwall-core/internal/module"
)

// fakeModule is a scriptable module.Module for manager tests.
type fakeModule struct {
	*module.Base

	initErr    error
	initOK     bool
	initPanics bool
	initCalls  atomic.Int32
}

func newFakeModule(name string) *fakeModule {
	return &fakeModule{
		Base:   module.NewBase(name, true),
		initOK: true,
	}
}

func (f *fakeModule) Initialize(ctx context.Context) (bool, error) {
	f.initCalls.Add(1)
	if err := f.BeginInitialize(); err != nil {
		return false, err
	}
	if f.initPanics {
		panic("backend exploded")
	}
	if f.initErr != nil {
		f.FinishInitialize(false)
		return false, f.initErr
	}
	f.FinishInitialize(f.initOK)
	return f.initOK, nil
}

func (f *fakeModule) StartMonitoring(ctx context.Context) error {
	return f.StartLoop(ctx, time.Minute, func(context.Context) {})
}

func (f *fakeModule) StopMonitoring(ctx context.Context) error {
	return f.StopLoop(ctx)
}

func (f *fakeModule) Shutdown(ctx context.Context) error {
	f.Retire(ctx)
	return nil
}

func TestInitializeAll_PartialFailure(t *testing.T) {
	m := NewManager()

	a := newFakeModule("display")
	b := newFakeModule("camera")
	b.initErr = errors.New("controller missing")
	c := newFakeModule("lighting")

	m.Register(a)
	m.Register(b)
	m.Register(c)

	if !m.InitializeAll(context.Background()) {
		t.Fatal("InitializeAll = false, want true with 2 of 3 succeeding")
	}

	if !a.Initialized() || !c.Initialized() {
		t.Error("sibling modules should be initialized despite one failure")
	}
	if b.Initialized() {
		t.Error("failed module should not report initialized")
	}
}

func TestInitializeAll_PanicIsolated(t *testing.T) {
	m := NewManager()

	good := newFakeModule("display")
	bad := newFakeModule("biamp")
	bad.initPanics = true

	m.Register(good)
	m.Register(bad)

	if !m.InitializeAll(context.Background()) {
		t.Fatal("InitializeAll = false, want true when one module panics")
	}
	if !good.Initialized() {
		t.Error("panic in one module must not abort siblings")
	}
}

func TestInitializeAll_AllFail(t *testing.T) {
	m := NewManager()
	bad := newFakeModule("camera")
	bad.initErr = errors.New("no device")
	m.Register(bad)

	if m.InitializeAll(context.Background()) {
		t.Error("InitializeAll = true, want false when every module fails")
	}

	// Not marked initialized, so a retry is allowed after re-registration.
	if m.Initialized() {
		t.Error("manager must not latch initialized on total failure")
	}
}

func TestInitializeAll_EmptyRegistry(t *testing.T) {
	m := NewManager()
	if m.InitializeAll(context.Background()) {
		t.Error("InitializeAll on empty registry = true, want false")
	}
}

func TestInitializeAll_SecondCallNoOp(t *testing.T) {
	m := NewManager()
	mod := newFakeModule("display")
	m.Register(mod)

	if !m.InitializeAll(context.Background()) {
		t.Fatal("first InitializeAll failed")
	}
	if !m.InitializeAll(context.Background()) {
		t.Fatal("second InitializeAll = false, want no-op true")
	}
	if got := mod.initCalls.Load(); got != 1 {
		t.Errorf("Initialize called %d times, want 1", got)
	}
}

func TestRegister_OverwriteByName(t *testing.T) {
	m := NewManager()

	first := newFakeModule("speaker")
	second := newFakeModule("speaker")
	m.Register(first)
	m.Register(second)

	if m.ModuleCount() != 1 {
		t.Fatalf("ModuleCount = %d, want 1", m.ModuleCount())
	}
	got, _ := m.Module("speaker")
	if got != second {
		t.Error("last registration should win")
	}
}

func TestShutdownAll_RegistryReusable(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	old := newFakeModule("display")
	m.Register(old)
	if !m.InitializeAll(ctx) {
		t.Fatal("initial InitializeAll failed")
	}

	m.ShutdownAll(ctx)
	if m.ModuleCount() != 0 {
		t.Fatalf("registry not cleared: %d modules", m.ModuleCount())
	}
	if !old.Retired() {
		t.Error("shutdown module should be retired")
	}

	// Fresh instance re-registers and initializes successfully.
	fresh := newFakeModule("display")
	m.Register(fresh)
	if !m.InitializeAll(ctx) {
		t.Fatal("InitializeAll after ShutdownAll = false, registry is poisoned")
	}
	if !fresh.Initialized() {
		t.Error("fresh module should initialize after full shutdown")
	}
}

func TestShutdownModule_RemovesOnlyTarget(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	a := newFakeModule("display")
	b := newFakeModule("lighting")
	m.Register(a)
	m.Register(b)
	m.InitializeAll(ctx)

	if err := m.ShutdownModule(ctx, "display"); err != nil {
		t.Fatalf("ShutdownModule error: %v", err)
	}

	if _, ok := m.Module("display"); ok {
		t.Error("shut-down module still registered")
	}
	if _, ok := m.Module("lighting"); !ok {
		t.Error("sibling module removed")
	}
	if !b.Initialized() {
		t.Error("sibling module disturbed by single shutdown")
	}
}

func TestShutdownModule_Unknown(t *testing.T) {
	m := NewManager()
	if err := m.ShutdownModule(context.Background(), "ghost"); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("ShutdownModule(ghost) = %v, want ErrModuleNotFound", err)
	}
}

func TestAllDevices_FailingModuleYieldsEmptyList(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	good := newFakeModule("display")
	good.Set().Upsert(module.DeviceInfo{ID: "p1", Name: "Panel", Health: module.HealthHealthy})
	m.Register(good)
	m.InitializeAll(ctx)

	devices := m.AllDevices(ctx)
	if len(devices["display"]) != 1 {
		t.Errorf("display devices = %d, want 1", len(devices["display"]))
	}
}

func TestRestart_RebuildsViaBuilder(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	first := newFakeModule("camera")
	m.Register(first)
	m.RegisterBuilder("camera", func() (module.Module, error) {
		return newFakeModule("camera"), nil
	})
	m.InitializeAll(ctx)

	if err := m.Restart(ctx, "camera", time.Millisecond); err != nil {
		t.Fatalf("Restart error: %v", err)
	}

	if !first.Retired() {
		t.Error("old instance should be retired by restart")
	}
	fresh, ok := m.Module("camera")
	if !ok {
		t.Fatal("restarted module not registered")
	}
	if fresh == module.Module(first) {
		t.Error("restart should register a fresh instance")
	}
	if !fresh.Initialized() {
		t.Error("restarted module should be initialized")
	}
}

func TestRestart_NoBuilder(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	m.Register(newFakeModule("biamp"))
	m.InitializeAll(ctx)

	if err := m.Restart(ctx, "biamp", time.Millisecond); !errors.Is(err, ErrNoBuilder) {
		t.Errorf("Restart without builder = %v, want ErrNoBuilder", err)
	}
}

func TestClose_Terminal(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	m.Register(newFakeModule("display"))

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := m.Close(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
	if m.InitializeAll(ctx) {
		t.Error("InitializeAll on closed manager = true, want false")
	}
}
