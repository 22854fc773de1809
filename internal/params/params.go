// Package params holds the parameters shared between the command channel and
// the animation engine.
package params

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"libdb.so/driftglow/internal/led"
)

// Mode selects the active animation.
type Mode uint8

const (
	ModeComet Mode = iota
	ModeStatic
	ModeBreathing
	ModeHeartbeat
	ModeRainbow
	ModePolice
	ModeScanner
)

// ModeSave is the reserved mode byte that asks for the current snapshot to be
// saved. It is never stored as an animation mode.
const ModeSave Mode = 255

// Known returns true if m selects one of the built-in animations.
func (m Mode) Known() bool {
	return m <= ModeScanner
}

// String returns a string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeComet:
		return "comet"
	case ModeStatic:
		return "static"
	case ModeBreathing:
		return "breathing"
	case ModeHeartbeat:
		return "heartbeat"
	case ModeRainbow:
		return "rainbow"
	case ModePolice:
		return "police"
	case ModeScanner:
		return "scanner"
	case ModeSave:
		return "save"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Snapshot is the full set of parameters. It is always read and replaced as
// a whole.
type Snapshot struct {
	Mode       Mode
	Color      led.RGBColor
	Speed      uint8
	Brightness uint8
}

// Defaults returns the snapshot used when nothing was persisted.
func Defaults() Snapshot {
	return Snapshot{
		Mode:       ModeComet,
		Color:      led.RGB(255, 0, 0),
		Speed:      128,
		Brightness: 128,
	}
}

// LogValue implements slog.LogValuer.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("mode", s.Mode.String()),
		slog.String("color", s.Color.String()),
		slog.Int("speed", int(s.Speed)),
		slog.Int("brightness", int(s.Brightness)),
	)
}

// Store holds the one live Snapshot. It is safe to call Load and Store from
// different goroutines; readers see either the old or the new snapshot.
type Store struct {
	v atomic.Pointer[Snapshot]
}

// NewStore creates a new Store holding the given snapshot.
func NewStore(initial Snapshot) *Store {
	s := &Store{}
	s.Store(initial)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() Snapshot {
	return *s.v.Load()
}

// Store replaces the current snapshot. The last write wins.
func (s *Store) Store(snapshot Snapshot) {
	s.v.Store(&snapshot)
}
