// Package strip contains the pixel output drivers that the animation engine
// writes frames to.
package strip

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"libdb.so/driftglow/internal/anim"
	"libdb.so/driftglow/internal/led"
)

// Log is a strip that only logs the frames written to it. It is useful on a
// bench without LEDs.
type Log struct {
	logger *slog.Logger
	leds   led.LEDs
	frames atomic.Uint64
}

var _ anim.Strip = (*Log)(nil)

// NewLog creates a new Log strip of the given length.
func NewLog(numLEDs int, logger *slog.Logger) *Log {
	return &Log{
		logger: logger,
		leds:   led.NewLEDs(numLEDs),
	}
}

// Set implements anim.Strip.
func (l *Log) Set(i int, c led.RGBColor) { l.leds.Set(i, c) }

// Write implements anim.Strip.
func (l *Log) Write() error {
	n := l.frames.Add(1)
	l.logger.Debug(
		"frame",
		"n", n,
		"pixels", fmt.Sprintf("%x", l.leds.AsPixels()))
	return nil
}

// Frames returns the number of frames written so far.
func (l *Log) Frames() uint64 { return l.frames.Load() }
