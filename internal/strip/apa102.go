package strip

import (
	"github.com/pkg/errors"
	"libdb.so/driftglow/internal/anim"
	"libdb.so/driftglow/internal/led"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/devices/apa102"
	"periph.io/x/periph/host"
)

// APA102Config configures an APA102 strip on an SPI port.
type APA102Config struct {
	// Port is the SPI port name as understood by spireg, e.g. "/dev/spidev0.0"
	// or "" for the first port.
	Port string
	// Hz limits the SPI clock. Zero keeps the port's default.
	Hz int64
	// NumLEDs is the number of LEDs on the strip.
	NumLEDs int
}

// APA102 drives an APA102 (DotStar) strip directly over SPI. Global
// brightness is already applied to the frame, so colors are passed through
// unchanged.
type APA102 struct {
	port spi.PortCloser
	dev  *apa102.Dev
	leds led.LEDs
}

var _ anim.Strip = (*APA102)(nil)

// OpenAPA102 initializes the host drivers and opens the strip.
func OpenAPA102(cfg APA102Config) (*APA102, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize host drivers")
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open SPI port %q", cfg.Port)
	}

	if cfg.Hz > 0 {
		if err := port.LimitSpeed(physic.Frequency(cfg.Hz) * physic.Hertz); err != nil {
			port.Close()
			return nil, errors.Wrap(err, "failed to limit SPI speed")
		}
	}

	a, err := NewAPA102(port, cfg.NumLEDs)
	if err != nil {
		port.Close()
		return nil, err
	}
	return a, nil
}

// NewAPA102 creates a strip on an already opened SPI port. The strip takes
// ownership of the port.
func NewAPA102(port spi.PortCloser, numLEDs int) (*APA102, error) {
	opts := apa102.PassThruOpts
	opts.NumPixels = numLEDs

	dev, err := apa102.New(port, &opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create APA102 device")
	}

	return &APA102{
		port: port,
		dev:  dev,
		leds: led.NewLEDs(numLEDs),
	}, nil
}

// Set implements anim.Strip.
func (a *APA102) Set(i int, c led.RGBColor) { a.leds.Set(i, c) }

// Write implements anim.Strip.
func (a *APA102) Write() error {
	if _, err := a.dev.Write(a.leds.AsPixels()); err != nil {
		return errors.Wrap(err, "failed to write to APA102 strip")
	}
	return nil
}

// Close turns the strip off and closes the SPI port.
func (a *APA102) Close() error {
	a.dev.Halt()
	return a.port.Close()
}
