package health

import (
	"context"
	"errors"
	"testing"

	"github.com/roomwall/roomwall-core/internal/module"
)

func TestRestartModule_Success(t *testing.T) {
	mod := newFakeModule("camera", true)
	initFake(t, mod)
	src := &fakeSource{mods: []module.Module{mod}}
	s := NewService(src, []string{"camera"})

	res := s.RestartModule(context.Background(), "camera")
	if !res.Success {
		t.Fatalf("RestartModule failed: %s", res.Message)
	}
	if len(src.restarted) != 1 || src.restarted[0] != "camera" {
		t.Errorf("restarted = %v, want [camera]", src.restarted)
	}
}

func TestRestartModule_FailureIsResultNotError(t *testing.T) {
	src := &fakeSource{restartErr: errors.New("no builder")}
	s := NewService(src, []string{"camera"})

	res := s.RestartModule(context.Background(), "camera")
	if res.Success {
		t.Error("RestartModule reported success despite manager error")
	}
	if res.Message == "" {
		t.Error("failure Result carries no message")
	}
}

func TestForceRefresh(t *testing.T) {
	mod := newFakeModule("display", true)
	initFake(t, mod)
	mod.Set().Upsert(module.DeviceInfo{ID: "p1", Health: module.HealthHealthy})

	s := NewService(&fakeSource{mods: []module.Module{mod}}, []string{"display"})

	res := s.ForceRefresh(context.Background())
	if !res.Success {
		t.Fatalf("ForceRefresh failed: %s", res.Message)
	}

	view, _ := s.ModuleView("display")
	if view.Overall != StatusHealthy {
		t.Errorf("Overall = %q after refresh, want %q", view.Overall, StatusHealthy)
	}
}

func TestTestConnection(t *testing.T) {
	mod := newFakeModule("speaker", true)
	initFake(t, mod)
	mod.Set().Upsert(module.DeviceInfo{ID: "s1", Health: module.HealthHealthy})
	mod.Set().Upsert(module.DeviceInfo{ID: "s2", Health: module.HealthOffline})

	s := NewService(&fakeSource{mods: []module.Module{mod}}, []string{"speaker", "biamp"})

	res := s.TestConnection(context.Background(), "speaker")
	if !res.Success {
		t.Errorf("TestConnection failed with a healthy device present: %s", res.Message)
	}
	ratio, ok := res.Data.(map[string]int)
	if !ok {
		t.Fatalf("Data type = %T, want map[string]int", res.Data)
	}
	if ratio["healthy"] != 1 || ratio["total"] != 2 {
		t.Errorf("ratio = %v, want healthy=1 total=2", ratio)
	}

	// Known but never registered.
	res = s.TestConnection(context.Background(), "biamp")
	if res.Success {
		t.Error("TestConnection succeeded for a not-implemented module")
	}

	res = s.TestConnection(context.Background(), "ghost")
	if res.Success {
		t.Error("TestConnection succeeded for an unknown module")
	}
}

func TestExportLogs(t *testing.T) {
	mod := newFakeModule("display", true)
	initFake(t, mod)
	mod.Set().Upsert(module.DeviceInfo{ID: "p1", Health: module.HealthHealthy})

	s := NewService(&fakeSource{mods: []module.Module{mod}}, []string{"display"})
	s.pollOnce(context.Background())

	s.OnHealthChange(module.HealthChange{Module: "display", DeviceID: "p1", Current: module.HealthOffline})
	s.OnHealthChange(module.HealthChange{Module: "display", DeviceID: "p1", Current: module.HealthHealthy})

	res := s.ExportLogs("display")
	if !res.Success {
		t.Fatalf("ExportLogs failed: %s", res.Message)
	}
	events, ok := res.Data.([]Event)
	if !ok {
		t.Fatalf("Data type = %T, want []Event", res.Data)
	}
	if len(events) != 2 {
		t.Errorf("exported %d events, want 2", len(events))
	}

	if res := s.ExportLogs("ghost"); res.Success {
		t.Error("ExportLogs succeeded for an unknown module")
	}
}
