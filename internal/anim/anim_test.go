package anim

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/driftglow/internal/led"
	"libdb.so/driftglow/internal/params"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStrip struct {
	mu      sync.Mutex
	pending led.LEDs
	frames  []led.LEDs
	err     error
}

func newFakeStrip(n int) *fakeStrip {
	return &fakeStrip{pending: led.NewLEDs(n)}
}

func (s *fakeStrip) Set(i int, c led.RGBColor) {
	s.mu.Lock()
	s.pending[i] = c
	s.mu.Unlock()
}

func (s *fakeStrip) Write() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, append(led.LEDs(nil), s.pending...))
	return nil
}

func (s *fakeStrip) last() led.LEDs {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *fakeStrip) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type harness struct {
	store  *params.Store
	strip  *fakeStrip
	clock  *fakeClock
	engine *Engine
}

func newHarness(n int, p params.Snapshot) *harness {
	h := &harness{
		store: params.NewStore(p),
		strip: newFakeStrip(n),
		clock: newFakeClock(),
	}
	h.engine = New(h.store, h.strip, Options{
		NumLEDs: n,
		Clock:   h.clock,
		Logger:  discardLogger,
	})
	return h
}

func TestEngineRateLimits(t *testing.T) {
	// Speed 0 maps to the slowest comet delay of 200ms.
	h := newHarness(10, params.Snapshot{Mode: params.ModeComet, Color: red, Speed: 0, Brightness: 255})

	assert.True(t, h.engine.Step(), "first step always renders")
	assert.False(t, h.engine.Step(), "no time has passed")

	h.clock.Advance(200 * time.Millisecond)
	assert.False(t, h.engine.Step(), "the delay must be exceeded, not just reached")

	h.clock.Advance(time.Millisecond)
	assert.True(t, h.engine.Step())
	assert.Equal(t, 2, h.strip.count())
}

func TestEngineUnknownModeIdles(t *testing.T) {
	for _, mode := range []params.Mode{7, 42, 254, params.ModeSave} {
		h := newHarness(4, params.Snapshot{Mode: mode, Color: red, Brightness: 255})
		for i := 0; i < 5; i++ {
			assert.False(t, h.engine.Step())
			h.clock.Advance(time.Second)
		}
		assert.Zero(t, h.strip.count())
	}
}

func TestEngineWriteFailureKeepsState(t *testing.T) {
	h := newHarness(5, params.Snapshot{Mode: params.ModeComet, Color: red, Speed: 255, Brightness: 255})
	h.strip.err = errors.New("unplugged")

	for i := 0; i < 3; i++ {
		assert.False(t, h.engine.Step())
		h.clock.Advance(time.Second)
	}

	c := h.engine.animations[params.ModeComet].(*comet)
	assert.Equal(t, 0, c.head, "head must not advance without a successful write")
	assert.False(t, c.stepped)

	h.strip.err = nil
	assert.True(t, h.engine.Step())
	assert.Equal(t, 1, c.head)
}

func TestEngineAppliesParameterChanges(t *testing.T) {
	h := newHarness(4, params.Snapshot{Mode: params.ModeStatic, Color: red, Brightness: 255})

	require.True(t, h.engine.Step())
	assert.Equal(t, led.RGB(127, 0, 0), h.strip.last()[0])

	h.store.Store(params.Snapshot{Mode: params.ModeStatic, Color: blue, Brightness: 0})
	h.clock.Advance(101 * time.Millisecond)
	require.True(t, h.engine.Step())
	assert.Equal(t, led.RGB(0, 0, 0), h.strip.last()[0])
}

func TestEngineResumesAfterModeSwitch(t *testing.T) {
	h := newHarness(6, params.Snapshot{Mode: params.ModeScanner, Color: red, Speed: 255, Brightness: 255})

	for i := 0; i < 3; i++ {
		require.True(t, h.engine.Step())
		h.clock.Advance(time.Second)
	}

	s := h.engine.animations[params.ModeScanner].(*scanner)
	assert.Equal(t, 3, s.pos)

	h.store.Store(params.Snapshot{Mode: params.ModeRainbow, Color: red, Speed: 255, Brightness: 255})
	require.True(t, h.engine.Step())
	h.clock.Advance(time.Second)

	h.store.Store(params.Snapshot{Mode: params.ModeScanner, Color: red, Speed: 255, Brightness: 255})
	require.True(t, h.engine.Step())
	assert.Equal(t, red, h.strip.last()[3], "scanner resumes where it left off")
	assert.Equal(t, 4, s.pos)
}

func TestEngineRun(t *testing.T) {
	h := newHarness(3, params.Snapshot{Mode: params.ModeStatic, Color: red, Brightness: 255})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx, time.Millisecond) }()

	// The fake clock never moves, so only the first frame is written.
	assert.Eventually(t, func() bool { return h.strip.count() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewPanicsOnEmptyStrip(t *testing.T) {
	assert.Panics(t, func() {
		New(params.NewStore(params.Defaults()), newFakeStrip(0), Options{})
	})
}
