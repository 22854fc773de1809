package anim

import (
	"math"
	"time"

	"libdb.so/driftglow/internal/led"
)

var (
	white = led.RGB(255, 255, 255)
	red   = led.RGB(255, 0, 0)
	blue  = led.RGB(0, 0, 255)
)

// Step delay ranges, in order of (fastest, slowest).
const (
	cometMin     = 20 * time.Millisecond
	cometMax     = 200 * time.Millisecond
	breathingMin = 200 * time.Millisecond
	breathingMax = 1500 * time.Millisecond
	heartbeatMin = 600 * time.Millisecond
	heartbeatMax = 2000 * time.Millisecond
	rainbowMin   = 10 * time.Millisecond
	rainbowMax   = 100 * time.Millisecond
	policeMin    = 50 * time.Millisecond
	policeMax    = 400 * time.Millisecond
	scannerMin   = 30 * time.Millisecond
	scannerMax   = 150 * time.Millisecond

	staticInterval = 100 * time.Millisecond
	smoothInterval = 20 * time.Millisecond
)

func mod(a, n int) int {
	return ((a % n) + n) % n
}

// comet is a white head running around the strip, trailed by three pixels of
// the configured color.
type comet struct {
	stepper
	n    int
	head int
}

var cometTrail = [...]float64{1.0, 0.4, 0.1}

func newComet(n int) *comet {
	return &comet{n: n}
}

func (c *comet) render(f *frame) bool {
	if !c.due(f.now, led.SpeedDelay(f.params.Speed, cometMin, cometMax)) {
		return false
	}

	f.leds.Fill(led.Black)
	f.leds[c.head] = f.scale(white, 1.0)
	for i, factor := range cometTrail {
		f.leds[mod(c.head-(i+1), c.n)] = f.scale(f.params.Color, factor)
	}
	return true
}

func (c *comet) commit(now time.Duration) {
	c.head = (c.head + 1) % c.n
	c.mark(now)
}

// static shows the configured color at half brightness.
type static struct {
	stepper
}

func (s *static) render(f *frame) bool {
	if !s.due(f.now, staticInterval) {
		return false
	}
	f.leds.Fill(f.scale(f.params.Color, 0.5))
	return true
}

func (s *static) commit(now time.Duration) { s.mark(now) }

// breathing fades the whole strip along a sine wave. It never goes fully
// dark.
type breathing struct {
	stepper
}

// breathingFactor returns the brightness factor at the given time. The result
// is within [0.05, 1].
func breathingFactor(now time.Duration, speed uint8) float64 {
	div := float64(led.SpeedDelay(speed, breathingMin, breathingMax).Milliseconds())
	b := (math.Sin(float64(now.Milliseconds())/div) + 1) / 2
	return 0.05 + b*0.95
}

func (b *breathing) render(f *frame) bool {
	if !b.due(f.now, smoothInterval) {
		return false
	}
	f.leds.Fill(f.scale(f.params.Color, breathingFactor(f.now, f.params.Speed)))
	return true
}

func (b *breathing) commit(now time.Duration) { b.mark(now) }

// heartbeat pulses the strip twice per cycle, then stays dark for the second
// half of the cycle.
type heartbeat struct {
	stepper
}

// heartbeatIntensity returns the linear intensity at the given position within
// a cycle of the given length. The envelope ramps up over the first eighth,
// down over the second, up and down again over the next two eighths, and is 0
// for the rest of the cycle.
func heartbeatIntensity(pos, cycle float64) float64 {
	p1 := cycle * 0.125
	p2 := cycle * 0.25
	p3 := cycle * 0.375
	p4 := cycle * 0.5

	switch {
	case pos < 0:
		return 0
	case pos < p1:
		return pos / p1
	case pos < p2:
		return 1.0 - (pos-p1)/(p2-p1)
	case pos < p3:
		return (pos - p2) / (p3 - p2)
	case pos < p4:
		return 1.0 - (pos-p3)/(p4-p3)
	default:
		return 0
	}
}

func (h *heartbeat) render(f *frame) bool {
	if !h.due(f.now, smoothInterval) {
		return false
	}

	cycle := led.SpeedDelay(f.params.Speed, heartbeatMin, heartbeatMax).Milliseconds()
	pos := f.now.Milliseconds() % cycle

	intensity := heartbeatIntensity(float64(pos), float64(cycle))
	f.leds.Fill(f.scale(f.params.Color, intensity*intensity))
	return true
}

func (h *heartbeat) commit(now time.Duration) { h.mark(now) }

// rainbow spreads the hue wheel over the strip and rotates it.
type rainbow struct {
	stepper
	offset uint8
}

func (r *rainbow) render(f *frame) bool {
	if !r.due(f.now, led.SpeedDelay(f.params.Speed, rainbowMin, rainbowMax)) {
		return false
	}

	n := len(f.leds)
	for i := range f.leds {
		idx := i*256/n + int(r.offset)
		f.leds[i] = f.scale(led.Wheel(idx&255), 1.0)
	}
	return true
}

func (r *rainbow) commit(now time.Duration) {
	r.offset++
	r.mark(now)
}

// police alternates a red first half and a blue second half.
type police struct {
	stepper
}

// policePhase returns 0 when the red half is lit and 1 when the blue half is.
func policePhase(now, delay time.Duration) int64 {
	return (now.Milliseconds() / delay.Milliseconds()) % 2
}

func (p *police) render(f *frame) bool {
	delay := led.SpeedDelay(f.params.Speed, policeMin, policeMax)
	if !p.due(f.now, delay) {
		return false
	}

	phase := policePhase(f.now, delay)
	half := len(f.leds) / 2

	f.leds.Fill(led.Black)
	if phase == 0 {
		f.leds.SetRange(0, half, f.scale(red, 1.0))
	} else {
		f.leds.SetRange(half, len(f.leds), f.scale(blue, 1.0))
	}
	return true
}

func (p *police) commit(now time.Duration) { p.mark(now) }

// scanner bounces a single pixel between both ends of the strip with one
// dimmed pixel trailing behind it.
type scanner struct {
	stepper
	n   int
	pos int
	dir int
}

func newScanner(n int) *scanner {
	return &scanner{n: n, dir: 1}
}

func (s *scanner) render(f *frame) bool {
	if !s.due(f.now, led.SpeedDelay(f.params.Speed, scannerMin, scannerMax)) {
		return false
	}

	f.leds.Fill(led.Black)
	f.leds[s.pos] = f.scale(f.params.Color, 1.0)
	// Set ignores a trail that falls off the strip.
	f.leds.Set(s.pos-s.dir, f.scale(f.params.Color, 0.3))
	return true
}

func (s *scanner) commit(now time.Duration) {
	s.pos += s.dir
	if s.pos > s.n-1 {
		s.pos = s.n - 1
	}
	if s.pos < 0 {
		s.pos = 0
	}

	switch {
	case s.pos >= s.n-1:
		s.dir = -1
	case s.pos <= 0:
		s.dir = 1
	}

	s.mark(now)
}
