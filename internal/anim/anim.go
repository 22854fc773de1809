// Package anim implements the animation engine. The engine is a cooperative
// scheduler: each call to Step looks at the current parameters, lets the
// active animation decide whether it is due, and writes at most one frame.
// Nothing in a step ever waits; an animation that is not due simply skips the
// iteration.
package anim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"libdb.so/driftglow/internal/led"
	"libdb.so/driftglow/internal/params"
)

// Strip is the pixel output driver. Set is called for every LED of a frame,
// followed by one Write.
type Strip interface {
	// Set sets the color of the LED at index i in the pending frame.
	Set(i int, c led.RGBColor)
	// Write sends the pending frame to the hardware.
	Write() error
}

// Clock returns the current time. It exists so that tests can control time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the Clock backed by time.Now.
var SystemClock Clock = systemClock{}

// frame is what an animation gets to draw.
type frame struct {
	// now is the time elapsed since the engine was created.
	now    time.Duration
	params params.Snapshot
	leds   led.LEDs
}

// scale scales c by the global brightness and the given factor.
func (f *frame) scale(c led.RGBColor, factor float64) led.RGBColor {
	return led.Scale(c, f.params.Brightness, factor)
}

// animation is a single lighting mode with its own runtime state.
type animation interface {
	// render draws a full frame into f.leds if the animation is due. It must
	// not change the animation's state. It returns false if nothing should be
	// written this iteration.
	render(f *frame) bool
	// commit advances the animation's state after the frame rendered at now
	// was written successfully.
	commit(now time.Duration)
}

// stepper rate-limits an animation.
type stepper struct {
	last    time.Duration
	stepped bool
}

// due returns true if more than delay has passed since the last step or if
// there was no step yet.
func (s *stepper) due(now, delay time.Duration) bool {
	return !s.stepped || now-s.last > delay
}

func (s *stepper) mark(now time.Duration) {
	s.last = now
	s.stepped = true
}

// Options configures an Engine.
type Options struct {
	// NumLEDs is the number of LEDs on the strip. It must be positive.
	NumLEDs int
	// Clock is the clock to use. If nil, SystemClock is used.
	Clock Clock
	// Logger is the logger to use. If nil, slog.Default is used.
	Logger *slog.Logger
}

// Engine renders the animation selected by the parameter store onto a strip.
// Animation state is kept across mode switches, so switching back to a mode
// resumes it where it left off.
type Engine struct {
	store  *params.Store
	strip  Strip
	clock  Clock
	logger *slog.Logger
	epoch  time.Time

	leds       led.LEDs
	animations [params.ModeScanner + 1]animation
	failing    bool
}

// New creates a new Engine.
func New(store *params.Store, strip Strip, opts Options) *Engine {
	if opts.NumLEDs < 1 {
		panic(fmt.Sprintf("anim: invalid number of LEDs: %d", opts.NumLEDs))
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		store:  store,
		strip:  strip,
		clock:  opts.Clock,
		logger: opts.Logger,
		epoch:  opts.Clock.Now(),
		leds:   led.NewLEDs(opts.NumLEDs),
	}

	e.animations = [...]animation{
		params.ModeComet:     newComet(opts.NumLEDs),
		params.ModeStatic:    &static{},
		params.ModeBreathing: &breathing{},
		params.ModeHeartbeat: &heartbeat{},
		params.ModeRainbow:   &rainbow{},
		params.ModePolice:    &police{},
		params.ModeScanner:   newScanner(opts.NumLEDs),
	}

	return e
}

// Step runs one iteration of the engine. It returns true if a frame was
// written to the strip.
func (e *Engine) Step() bool {
	now := e.clock.Now().Sub(e.epoch)
	p := e.store.Load()

	if !p.Mode.Known() {
		// Idle.
		return false
	}

	a := e.animations[p.Mode]
	f := frame{
		now:    now,
		params: p,
		leds:   e.leds,
	}

	if !a.render(&f) {
		return false
	}

	for i, c := range e.leds {
		e.strip.Set(i, c)
	}

	if err := e.strip.Write(); err != nil {
		if !e.failing {
			e.logger.Warn(
				"failed to write frame",
				"mode", p.Mode,
				"error", err)
			e.failing = true
		}
		return false
	}

	if e.failing {
		e.logger.Info("strip is writable again")
		e.failing = false
	}

	a.commit(now)
	return true
}

// Run calls Step every interval until ctx is canceled. It only ever returns
// ctx.Err().
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Debug(
		"starting animation loop",
		"interval", interval,
		"leds", len(e.leds))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.safeStep()
		}
	}
}

func (e *Engine) safeStep() {
	defer func() {
		if v := recover(); v != nil {
			e.logger.Error(
				"panic in animation step",
				"panic", v)
		}
	}()
	e.Step()
}
