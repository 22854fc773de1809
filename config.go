package driftglow

import (
	"encoding"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config is the configuration for the driftglow daemon.
type Config struct {
	// NumLEDs is the number of LEDs on the strip.
	NumLEDs int `toml:"num_leds"`
	// TickInterval is how often the animation engine wakes up to check
	// whether the active animation is due.
	TickInterval TOMLDuration `toml:"tick_interval"`
	// Settings configures where the parameters are saved.
	Settings SettingsConfig `toml:"settings"`
	// Output configures the LED strip driver.
	Output OutputConfig `toml:"output"`
	// Radio configures the BLE peripheral.
	Radio RadioConfig `toml:"radio"`
}

// SettingsConfig is the configuration for the persisted parameters.
type SettingsConfig struct {
	Backend SettingsBackend `toml:"backend"`
	// Path is the settings file or database path.
	Path string `toml:"path"`
}

// SettingsBackend is the storage used for the persisted parameters.
type SettingsBackend string

const (
	// FileBackend saves the parameters to a TOML file.
	FileBackend SettingsBackend = "file"
	// SQLiteBackend saves the parameters to an SQLite database.
	SQLiteBackend SettingsBackend = "sqlite"
)

// OutputConfig is the configuration for the LED strip driver.
type OutputConfig struct {
	Kind OutputKind `toml:"kind"`

	// Device is the path to the serial device for the serial output.
	// This is usually /dev/ttyUSB0 or /dev/ttyACM0.
	Device string `toml:"device"`
	// Baud is the baud rate for the serial output.
	Baud int `toml:"baud"`
	// Retry is how long to wait before reopening a failed serial device.
	Retry TOMLDuration `toml:"retry"`

	// SPIPort is the SPI port for the APA102 output.
	SPIPort string `toml:"spi_port"`
	// SPIHz limits the SPI clock for the APA102 output.
	SPIHz int64 `toml:"spi_hz"`
}

// OutputKind is the kind of LED strip driver.
type OutputKind string

const (
	// SerialOutput sends frames to a microcontroller over a serial port.
	SerialOutput OutputKind = "serial"
	// APA102Output drives an APA102 strip over SPI.
	APA102Output OutputKind = "apa102"
	// LogOutput only logs frames.
	LogOutput OutputKind = "log"
)

// RadioConfig is the configuration for the BLE peripheral.
type RadioConfig struct {
	// Disabled turns the BLE peripheral off. The strip then keeps showing
	// the saved parameters.
	Disabled bool `toml:"disabled"`
	// Name is the advertised local name.
	Name string `toml:"name"`
	// AdvertiseInterval is the advertising interval.
	AdvertiseInterval TOMLDuration `toml:"advertise_interval"`
}

// DefaultConfig returns the configuration used for anything the
// configuration file leaves out.
func DefaultConfig() Config {
	return Config{
		NumLEDs:      14,
		TickInterval: TOMLDuration(5 * time.Millisecond),
		Settings: SettingsConfig{
			Backend: FileBackend,
			Path:    "settings.toml",
		},
		Output: OutputConfig{
			Kind:   SerialOutput,
			Device: "/dev/ttyACM0",
			Baud:   115200,
			Retry:  TOMLDuration(time.Second),
		},
		Radio: RadioConfig{
			Name:              "Dr!ft_Lader",
			AdvertiseInterval: TOMLDuration(100 * time.Millisecond),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.NumLEDs < 1 {
		return errors.New("no LEDs configured")
	}

	if c.NumLEDs > 0xFFFF {
		return fmt.Errorf("too many LEDs: %d", c.NumLEDs)
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("invalid tick interval %s", time.Duration(c.TickInterval))
	}

	switch c.Settings.Backend {
	case FileBackend, SQLiteBackend:
	default:
		return fmt.Errorf("unknown settings backend %q", c.Settings.Backend)
	}

	if c.Settings.Path == "" {
		return errors.New("no settings path configured")
	}

	switch c.Output.Kind {
	case SerialOutput:
		if c.Output.Device == "" {
			return errors.New("serial output needs a device")
		}
		if c.Output.Baud <= 0 {
			return fmt.Errorf("invalid baud rate %d", c.Output.Baud)
		}
	case APA102Output, LogOutput:
	default:
		return fmt.Errorf("unknown output kind %q", c.Output.Kind)
	}

	return nil
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader. Fields that are not
// present keep their DefaultConfig values.
func ParseConfig(r io.Reader) (*Config, error) {
	config := DefaultConfig()
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	return &config, nil
}
