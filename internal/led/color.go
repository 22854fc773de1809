package led

import "time"

// Scale dims c by the global brightness and the given animation factor. Each
// channel is multiplied by (brightness/255) * factor and truncated. The factor
// is expected to be within [0, 1].
func Scale(c RGBColor, brightness uint8, factor float64) RGBColor {
	f := float64(brightness) / 255 * factor
	return RGBColor{
		uint8(float64(c[0]) * f),
		uint8(float64(c[1]) * f),
		uint8(float64(c[2]) * f),
	}
}

// Wheel maps a position in [0, 255] onto a fully saturated color. The colors
// go from red to green to blue and back to red in three 85-wide segments.
// Positions outside of [0, 255] return black.
func Wheel(pos int) RGBColor {
	switch {
	case pos < 0 || pos > 255:
		return Black
	case pos < 85:
		return RGBColor{uint8(255 - pos*3), uint8(pos * 3), 0}
	case pos < 170:
		pos -= 85
		return RGBColor{0, uint8(255 - pos*3), uint8(pos * 3)}
	default:
		pos -= 170
		return RGBColor{uint8(pos * 3), 0, uint8(255 - pos*3)}
	}
}

// SpeedDelay maps a speed byte onto a delay between min and max. The scale is
// inverted: 0 yields max and 255 yields min. The result is truncated to whole
// milliseconds.
func SpeedDelay(speed uint8, min, max time.Duration) time.Duration {
	minMs := float64(min.Milliseconds())
	maxMs := float64(max.Milliseconds())
	ms := maxMs - float64(speed)*(maxMs-minMs)/255
	return time.Duration(int64(ms)) * time.Millisecond
}
