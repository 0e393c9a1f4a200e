package sysaudio

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/mixer"
	"github.com/roomwall/roomwall-core/internal/module"
)

// fakeMixer holds one default-sink state.
type fakeMixer struct {
	mu     sync.Mutex
	volume int
	muted  bool
	err    error
}

func (f *fakeMixer) Volume(context.Context, mixer.Kind, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, f.err
}

func (f *fakeMixer) SetVolume(_ context.Context, _ mixer.Kind, _ string, percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.volume = percent
	return nil
}

func (f *fakeMixer) Muted(context.Context, mixer.Kind, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted, f.err
}

func (f *fakeMixer) SetMuted(_ context.Context, _ mixer.Kind, _ string, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.muted = muted
	return nil
}

func (f *fakeMixer) Check(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func newTestModule(t *testing.T, mix mixer.Mixer) *Module {
	t.Helper()

	mod := New(config.SystemAudioConfig{Enabled: true}, mix)
	ok, err := mod.Initialize(context.Background())
	if !ok || err != nil {
		t.Fatalf("Initialize: ok=%v err=%v", ok, err)
	}
	return mod
}

func TestSingleDevice(t *testing.T) {
	mod := newTestModule(t, &fakeMixer{volume: 50})

	devices, err := mod.Devices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 || devices[0].ID != DeviceID {
		t.Fatalf("devices = %+v, want single %s", devices, DeviceID)
	}
	if devices[0].Health != module.HealthHealthy {
		t.Errorf("health = %s, want healthy", devices[0].Health)
	}
}

func TestVolumeAndMute(t *testing.T) {
	mix := &fakeMixer{volume: 50}
	mod := newTestModule(t, mix)
	ctx := context.Background()
	props := mod.Properties()

	if err := props["volume"].Set(ctx, DeviceID, json.RawMessage(`{"volume":80}`)); err != nil {
		t.Fatal(err)
	}
	if mix.volume != 80 {
		t.Errorf("volume = %d, want 80", mix.volume)
	}

	if err := props["mute"].Set(ctx, DeviceID, json.RawMessage(`{"muted":true}`)); err != nil {
		t.Fatal(err)
	}
	got, err := props["mute"].Get(ctx, DeviceID)
	if err != nil {
		t.Fatal(err)
	}
	if got != true {
		t.Errorf("muted = %v, want true", got)
	}
}

func TestWrongDeviceID(t *testing.T) {
	mod := newTestModule(t, &fakeMixer{})

	_, err := mod.Properties()["volume"].Get(context.Background(), "ghost")
	if !errors.Is(err, module.ErrDeviceNotFound) {
		t.Errorf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestPollTracksMixerHealth(t *testing.T) {
	mix := &fakeMixer{}
	mod := newTestModule(t, mix)
	ctx := context.Background()

	mix.mu.Lock()
	mix.err = errors.New("mixer wedged")
	mix.mu.Unlock()

	mod.poll(ctx)
	devices, _ := mod.Devices(ctx)
	if devices[0].Health != module.HealthUnhealthy {
		t.Errorf("health = %s, want unhealthy", devices[0].Health)
	}

	mix.mu.Lock()
	mix.err = nil
	mix.mu.Unlock()

	mod.poll(ctx)
	devices, _ = mod.Devices(ctx)
	if devices[0].Health != module.HealthHealthy {
		t.Errorf("health = %s after recovery, want healthy", devices[0].Health)
	}
}

func TestInvalidPayloads(t *testing.T) {
	mod := newTestModule(t, &fakeMixer{})
	ctx := context.Background()
	props := mod.Properties()

	if err := props["volume"].Set(ctx, DeviceID, json.RawMessage(`{}`)); !errors.Is(err, module.ErrNotSupported) {
		t.Errorf("volume err = %v, want ErrNotSupported", err)
	}
	if err := props["mute"].Set(ctx, DeviceID, json.RawMessage(`"yes"`)); !errors.Is(err, module.ErrNotSupported) {
		t.Errorf("mute err = %v, want ErrNotSupported", err)
	}
}
