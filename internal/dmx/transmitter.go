package dmx

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Frame rate bounds. DMX hardware expects a continuous refresh in this
// band; anything slower risks fixture hold timeouts.
const (
	minFrameRate     = 25
	maxFrameRate     = 30
	defaultFrameRate = 30
)

// Logger defines the logging interface used by the Transmitter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transmitter owns the universe buffer and streams it continuously.
type Transmitter struct {
	adapter   Adapter
	store     Store
	logger    Logger
	frameRate int

	mu       sync.Mutex
	fixtures map[string]*Fixture
	universe [UniverseSize]byte

	healthy atomic.Bool

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTransmitter creates a transmitter for the given adapter. The store
// may be nil, in which case state does not persist. Frame rates outside
// the DMX band are clamped.
func NewTransmitter(adapter Adapter, store Store, frameRate int) *Transmitter {
	switch {
	case frameRate == 0:
		frameRate = defaultFrameRate
	case frameRate < minFrameRate:
		frameRate = minFrameRate
	case frameRate > maxFrameRate:
		frameRate = maxFrameRate
	}

	t := &Transmitter{
		adapter:   adapter,
		store:     store,
		logger:    noopLogger{},
		frameRate: frameRate,
		fixtures:  make(map[string]*Fixture),
	}
	t.healthy.Store(true)
	return t
}

// SetLogger sets the logger for the transmitter.
func (t *Transmitter) SetLogger(logger Logger) {
	t.logger = logger
}

// AddFixture registers a fixture after validating its channel mapping.
// Persisted state for the same ID, loaded beforehand via Restore, wins
// over the zero color.
func (t *Transmitter) AddFixture(f Fixture) error {
	if err := f.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.fixtures[f.ID]; ok {
		// Keep the stored look, adopt the new mapping.
		f.Color = existing.Color
		f.Brightness = existing.Brightness
	}
	t.fixtures[f.ID] = &f
	t.rebuildLocked()
	return nil
}

// Restore loads persisted fixture state into the universe. Call before
// AddFixture so config-defined fixtures pick up their saved look.
func (t *Transmitter) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	saved, err := t.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range saved {
		f := saved[i]
		if err := f.Validate(); err != nil {
			t.logger.Warn("skipping invalid persisted fixture", "fixture", f.ID, "error", err)
			continue
		}
		t.fixtures[f.ID] = &f
	}
	t.rebuildLocked()
	return nil
}

// SetColor updates a fixture's stored color and persists it.
func (t *Transmitter) SetColor(ctx context.Context, id string, color Color) error {
	return t.mutate(ctx, id, func(f *Fixture) {
		f.Color = color
	})
}

// SetBrightness updates a fixture's brightness, clamped to [0, 1], and
// persists it. The stored color is untouched so restoring brightness
// restores the same look.
func (t *Transmitter) SetBrightness(ctx context.Context, id string, brightness float64) error {
	if brightness < 0 {
		brightness = 0
	}
	if brightness > 1 {
		brightness = 1
	}
	return t.mutate(ctx, id, func(f *Fixture) {
		f.Brightness = brightness
	})
}

// mutate applies one change, rebuilds the universe and persists.
func (t *Transmitter) mutate(ctx context.Context, id string, apply func(*Fixture)) error {
	t.mu.Lock()
	f, ok := t.fixtures[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownFixture, id)
	}
	apply(f)
	snapshot := *f
	t.rebuildLocked()
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Save(ctx, snapshot); err != nil {
			return err
		}
	}
	return nil
}

// Fixture returns one fixture's current state.
func (t *Transmitter) Fixture(id string) (Fixture, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.fixtures[id]
	if !ok {
		return Fixture{}, false
	}
	return *f, true
}

// Fixtures returns a snapshot of all fixtures.
func (t *Transmitter) Fixtures() []Fixture {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Fixture, 0, len(t.fixtures))
	for _, f := range t.fixtures {
		out = append(out, *f)
	}
	return out
}

// Universe returns a copy of the current channel buffer.
func (t *Transmitter) Universe() [UniverseSize]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.universe
}

// Healthy reports whether the last frame write succeeded.
func (t *Transmitter) Healthy() bool {
	return t.healthy.Load()
}

// Start begins the continuous transmit loop. Idempotent while running.
func (t *Transmitter) Start(ctx context.Context) {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()

	if t.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	interval := time.Second / time.Duration(t.frameRate)
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				t.transmitFrame()
			}
		}
	}()

	t.logger.Info("dmx transmit loop started", "frame_rate", t.frameRate)
}

// Stop halts the transmit loop and waits for it to exit.
func (t *Transmitter) Stop() {
	t.loopMu.Lock()
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.done = nil
	t.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops the loop and closes the adapter.
func (t *Transmitter) Close() error {
	t.Stop()
	return t.adapter.Close()
}

// transmitFrame writes the current universe. The frame goes out every
// tick whether or not anything changed.
func (t *Transmitter) transmitFrame() {
	t.mu.Lock()
	frame := make([]byte, UniverseSize)
	copy(frame, t.universe[:])
	t.mu.Unlock()

	if err := t.adapter.WriteFrame(frame); err != nil {
		if t.healthy.Swap(false) {
			t.logger.Error("dmx frame write failed", "error", err)
		}
		return
	}
	if !t.healthy.Swap(true) {
		t.logger.Info("dmx frame writes recovered")
	}
}

// rebuildLocked recomputes the universe from fixture state.
func (t *Transmitter) rebuildLocked() {
	t.universe = [UniverseSize]byte{}
	for _, f := range t.fixtures {
		copy(t.universe[f.StartChannel-1:], f.channelValues())
	}
}
