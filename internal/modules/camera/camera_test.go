package camera

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/infrastructure/database"
	"github.com/roomwall/roomwall-core/internal/module"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "roomwall.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestInitializeWithMissingBinaryIsRecoverable(t *testing.T) {
	mod := New(config.CameraConfig{
		Enabled: true,
		Binary:  "/nonexistent/camera-controller",
		Port:    0,
	}, openTestDB(t))

	ok, err := mod.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize returned unrecoverable error: %v", err)
	}
	if ok {
		t.Fatal("Initialize reported success with a missing binary")
	}
	if mod.Initialized() {
		t.Error("module claims initialized after failed start")
	}
}

func TestExhaustedControllerMarksCamerasOffline(t *testing.T) {
	mod := New(config.CameraConfig{Enabled: true, Binary: "/nonexistent/camera-controller"}, openTestDB(t))

	mod.Set().Upsert(module.DeviceInfo{
		ID: "camera-1", Name: "PTZ camera-1", Type: deviceType, Health: module.HealthHealthy,
	})

	mod.onExhausted()

	devices, _ := mod.Devices(context.Background())
	if devices[0].Health != module.HealthOffline {
		t.Errorf("health = %s, want offline", devices[0].Health)
	}

	// Commands are refused once the supervisor has given up.
	err := mod.Properties()["ptz"].Set(context.Background(), "camera-1", json.RawMessage(`{"pan":1}`))
	if err == nil {
		t.Error("relay accepted a command after exhaustion")
	}

	// Polling must not resurrect the devices.
	mod.poll(context.Background())
	devices, _ = mod.Devices(context.Background())
	if devices[0].Health != module.HealthOffline {
		t.Errorf("health after poll = %s, want offline", devices[0].Health)
	}
}

func TestPropertySurface(t *testing.T) {
	mod := New(config.CameraConfig{Enabled: true}, openTestDB(t))

	props := mod.Properties()
	for _, name := range []string{"ptz", "tracking", "framing"} {
		p, ok := props[name]
		if !ok {
			t.Errorf("property %s missing", name)
			continue
		}
		if p.Get == nil || p.Set == nil {
			t.Errorf("property %s must relay both directions", name)
		}
	}
}
