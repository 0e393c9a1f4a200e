package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/roomwall/roomwall-core/internal/hardware"
	"github.com/roomwall/roomwall-core/internal/health"
	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/infrastructure/logging"
	"github.com/roomwall/roomwall-core/internal/module"
)

// stubModule is a minimal module with one controllable property.
type stubModule struct {
	*module.Base

	powerByID map[string]bool
	enabled   map[string]bool
}

func newStubModule(name string, devices ...module.DeviceInfo) *stubModule {
	m := &stubModule{
		Base:      module.NewBase(name, true),
		powerByID: make(map[string]bool),
		enabled:   make(map[string]bool),
	}
	for _, d := range devices {
		m.Set().Upsert(d)
		m.powerByID[d.ID] = true
	}
	return m
}

func (m *stubModule) Initialize(_ context.Context) (bool, error) {
	if err := m.BeginInitialize(); err != nil {
		return false, err
	}
	m.FinishInitialize(true)
	return true, nil
}

func (m *stubModule) StartMonitoring(_ context.Context) error { return nil }
func (m *stubModule) StopMonitoring(_ context.Context) error  { return nil }

func (m *stubModule) Shutdown(ctx context.Context) error {
	m.Retire(ctx)
	return nil
}

func (m *stubModule) SetDeviceEnabled(_ context.Context, deviceID string, enabled bool) error {
	if _, ok := m.Set().Get(deviceID); !ok {
		return module.ErrDeviceNotFound
	}
	m.enabled[deviceID] = enabled
	return nil
}

func (m *stubModule) Properties() map[string]module.Property {
	return map[string]module.Property{
		"power": {
			Get: func(_ context.Context, deviceID string) (any, error) {
				v, ok := m.powerByID[deviceID]
				if !ok {
					return nil, module.ErrDeviceNotFound
				}
				return v, nil
			},
			Set: func(_ context.Context, deviceID string, payload json.RawMessage) error {
				if _, ok := m.powerByID[deviceID]; !ok {
					return module.ErrDeviceNotFound
				}
				var req struct {
					Power *bool `json:"power"`
				}
				if err := json.Unmarshal(payload, &req); err != nil || req.Power == nil {
					return module.ErrNotSupported
				}
				m.powerByID[deviceID] = *req.Power
				return nil
			},
		},
		"readonly": {
			Get: func(_ context.Context, _ string) (any, error) { return "ok", nil },
		},
	}
}

type stubNavigator struct {
	current string
}

func (n *stubNavigator) Navigate(url string) bool {
	n.current = url
	return true
}

func (n *stubNavigator) CurrentURL() string { return n.current }

// apiEnvelope mirrors the wire format for assertions.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

type testEnv struct {
	server  *Server
	router  http.Handler
	manager *hardware.Manager
}

func newTestEnv(t *testing.T, deps Deps, mods ...module.Module) *testEnv {
	t.Helper()

	manager := hardware.NewManager()
	for _, mod := range mods {
		manager.Register(mod)
	}
	manager.InitializeAll(context.Background())

	svc := health.NewService(manager, nil)

	deps.Logger = testLogger()
	deps.Manager = manager
	deps.Health = svc

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return &testEnv{server: srv, router: srv.buildRouter(), manager: manager}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) (*httptest.ResponseRecorder, apiEnvelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env apiEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid envelope %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, env
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, Deps{Version: "1.2.3"})

	rec, envl := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !envl.Success {
		t.Fatal("expected success envelope")
	}

	var data struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(envl.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if data.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", data.Version)
	}
}

func TestHealthAlias(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rec, envl := env.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK || !envl.Success {
		t.Fatalf("health alias: code=%d success=%v", rec.Code, envl.Success)
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rec, envl := env.do(t, http.MethodGet, "/api/v1/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if envl.Success {
		t.Error("expected failure envelope")
	}
	if envl.Error == nil || envl.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", envl.Error)
	}
}

func TestUnregisteredModuleHasNoRoutes(t *testing.T) {
	// lighting was never registered, so its group does not exist.
	env := newTestEnv(t, Deps{}, newStubModule("display", module.DeviceInfo{
		ID: "d1", Name: "Main Display", Health: module.HealthHealthy,
	}))

	rec, envl := env.do(t, http.MethodGet, "/api/v1/lighting/fixture-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if envl.Error == nil || envl.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", envl.Error)
	}
}

func TestModuleDeviceList(t *testing.T) {
	env := newTestEnv(t, Deps{}, newStubModule("display",
		module.DeviceInfo{ID: "d1", Name: "Main Display", Health: module.HealthHealthy},
		module.DeviceInfo{ID: "d2", Name: "Side Display", Health: module.HealthOffline},
	))

	rec, envl := env.do(t, http.MethodGet, "/api/v1/display/", nil)
	if rec.Code != http.StatusOK || !envl.Success {
		t.Fatalf("code=%d success=%v", rec.Code, envl.Success)
	}

	var devices []module.DeviceInfo
	if err := json.Unmarshal(envl.Data, &devices); err != nil {
		t.Fatalf("decoding devices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
}

func TestDeviceStatus(t *testing.T) {
	env := newTestEnv(t, Deps{}, newStubModule("display", module.DeviceInfo{
		ID: "d1", Name: "Main Display", Health: module.HealthHealthy,
	}))

	rec, _ := env.do(t, http.MethodGet, "/api/v1/display/d1/", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("known device: status = %d, want 200", rec.Code)
	}

	rec, envl := env.do(t, http.MethodGet, "/api/v1/display/ghost/", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown device: status = %d, want 404", rec.Code)
	}
	if envl.Error == nil || envl.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", envl.Error)
	}
}

func TestPropertyGetAndSet(t *testing.T) {
	env := newTestEnv(t, Deps{}, newStubModule("display", module.DeviceInfo{
		ID: "d1", Name: "Main Display", Health: module.HealthHealthy,
	}))

	rec, envl := env.do(t, http.MethodGet, "/api/v1/display/d1/power", nil)
	if rec.Code != http.StatusOK || !envl.Success {
		t.Fatalf("get power: code=%d success=%v", rec.Code, envl.Success)
	}

	rec, _ = env.do(t, http.MethodPut, "/api/v1/display/d1/power", []byte(`{"power":false}`))
	if rec.Code != http.StatusOK {
		t.Errorf("set power: status = %d, want 200", rec.Code)
	}

	// The read-only property has no Set accessor, so no PUT route exists.
	rec, _ = env.do(t, http.MethodPut, "/api/v1/display/d1/readonly", []byte(`{}`))
	if rec.Code == http.StatusOK {
		t.Error("read-only property accepted a PUT")
	}
}

func TestPropertyErrorsMapToEnvelopeCodes(t *testing.T) {
	env := newTestEnv(t, Deps{}, newStubModule("display", module.DeviceInfo{
		ID: "d1", Name: "Main Display", Health: module.HealthHealthy,
	}))

	rec, envl := env.do(t, http.MethodGet, "/api/v1/display/ghost/power", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown device: status = %d, want 404", rec.Code)
	}
	if envl.Error == nil || envl.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", envl.Error)
	}

	rec, envl = env.do(t, http.MethodPut, "/api/v1/display/d1/power", []byte(`{"wrong":1}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad payload: status = %d, want 400", rec.Code)
	}
	if envl.Error == nil || envl.Error.Code != "BAD_REQUEST" {
		t.Errorf("error = %+v, want BAD_REQUEST", envl.Error)
	}
}

func TestDeviceEnable(t *testing.T) {
	mod := newStubModule("display", module.DeviceInfo{
		ID: "d1", Name: "Main Display", Health: module.HealthHealthy,
	})
	env := newTestEnv(t, Deps{}, mod)

	rec, _ := env.do(t, http.MethodPut, "/api/v1/display/d1/enable", []byte(`{"enabled":false}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if mod.enabled["d1"] {
		t.Error("device still enabled after disable request")
	}

	rec, envl := env.do(t, http.MethodPut, "/api/v1/display/d1/enable", []byte(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing field: status = %d, want 400", rec.Code)
	}
	if envl.Error == nil || envl.Error.Code != "BAD_REQUEST" {
		t.Errorf("error = %+v, want BAD_REQUEST", envl.Error)
	}
}

func TestEvictedModuleAnswers503(t *testing.T) {
	env := newTestEnv(t, Deps{}, newStubModule("display", module.DeviceInfo{
		ID: "d1", Name: "Main Display", Health: module.HealthHealthy,
	}))

	// Routes were mounted at build time; removing the module afterwards
	// must surface as unavailable, not a panic or a stale snapshot.
	if err := env.manager.ShutdownModule(context.Background(), "display"); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	rec, envl := env.do(t, http.MethodGet, "/api/v1/display/", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if envl.Error == nil || envl.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("error = %+v, want SERVICE_UNAVAILABLE", envl.Error)
	}
}

func TestNavigationWithoutNavigator(t *testing.T) {
	env := newTestEnv(t, Deps{})

	rec, envl := env.do(t, http.MethodPost, "/api/v1/navigation/navigate", []byte(`{"url":"http://example.com"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if envl.Error == nil || envl.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("error = %+v, want SERVICE_UNAVAILABLE", envl.Error)
	}
}

func TestNavigation(t *testing.T) {
	nav := &stubNavigator{current: "http://start"}
	env := newTestEnv(t, Deps{Nav: nav})

	rec, _ := env.do(t, http.MethodPost, "/api/v1/navigation/navigate", []byte(`{"url":"http://example.com"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("navigate: status = %d, want 200", rec.Code)
	}
	if nav.current != "http://example.com" {
		t.Errorf("navigator url = %q", nav.current)
	}

	rec, envl := env.do(t, http.MethodPost, "/api/v1/navigation/navigate", []byte(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty url: status = %d, want 400", rec.Code)
	}
	if envl.Error == nil || envl.Error.Code != "BAD_REQUEST" {
		t.Errorf("error = %+v, want BAD_REQUEST", envl.Error)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/navigation/current", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("current: status = %d, want 200", rec.Code)
	}
}

func TestMediaRoutesOnlyWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	disabled := newTestEnv(t, Deps{Media: config.MediaConfig{Enabled: false, BasePath: dir}})
	rec, _ := disabled.do(t, http.MethodGet, "/api/v1/media/", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled media: status = %d, want 404", rec.Code)
	}

	enabled := newTestEnv(t, Deps{Media: config.MediaConfig{Enabled: true, BasePath: dir}})
	rec, envl := enabled.do(t, http.MethodGet, "/api/v1/media/", nil)
	if rec.Code != http.StatusOK || !envl.Success {
		t.Fatalf("enabled media: code=%d success=%v", rec.Code, envl.Success)
	}

	var files []map[string]any
	if err := json.Unmarshal(envl.Data, &files); err != nil {
		t.Fatalf("decoding files: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
}

func TestMediaTraversalRejected(t *testing.T) {
	env := newTestEnv(t, Deps{Media: config.MediaConfig{Enabled: true, BasePath: t.TempDir()}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/media/file", nil)
	req.URL.Path = "/api/v1/media/..%2fsecret"
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Error("traversal request succeeded")
	}
}

func TestDiagnosticsRoutes(t *testing.T) {
	env := newTestEnv(t, Deps{}, newStubModule("display", module.DeviceInfo{
		ID: "d1", Name: "Main Display", Health: module.HealthHealthy,
	}))

	rec, envl := env.do(t, http.MethodPost, "/api/v1/diagnostics/refresh", nil)
	if rec.Code != http.StatusOK || !envl.Success {
		t.Fatalf("refresh: code=%d success=%v", rec.Code, envl.Success)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/diagnostics/display/test", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("test: status = %d, want 200", rec.Code)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/diagnostics/display/logs", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("logs: status = %d, want 200", rec.Code)
	}
}

func TestAllDevices(t *testing.T) {
	env := newTestEnv(t, Deps{},
		newStubModule("display", module.DeviceInfo{ID: "d1", Name: "Main", Health: module.HealthHealthy}),
		newStubModule("biamp", module.DeviceInfo{ID: "b1", Name: "DSP", Health: module.HealthHealthy}),
	)

	rec, envl := env.do(t, http.MethodGet, "/api/v1/devices", nil)
	if rec.Code != http.StatusOK || !envl.Success {
		t.Fatalf("code=%d success=%v", rec.Code, envl.Success)
	}

	var byModule map[string][]module.DeviceInfo
	if err := json.Unmarshal(envl.Data, &byModule); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(byModule) != 2 {
		t.Fatalf("got %d modules, want 2", len(byModule))
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("expected error without logger")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("expected error without manager")
	}
}
