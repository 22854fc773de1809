package driftglow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`
num_leds = 30
tick_interval = "2ms"

[output]
kind = "apa102"
spi_port = "/dev/spidev0.0"
spi_hz = 4000000

[radio]
disabled = true
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30, cfg.NumLEDs)
	assert.Equal(t, 2*time.Millisecond, time.Duration(cfg.TickInterval))
	assert.Equal(t, APA102Output, cfg.Output.Kind)
	assert.Equal(t, "/dev/spidev0.0", cfg.Output.SPIPort)
	assert.EqualValues(t, 4000000, cfg.Output.SPIHz)
	assert.True(t, cfg.Radio.Disabled)

	// Everything left out comes from the defaults.
	def := DefaultConfig()
	assert.Equal(t, def.Settings, cfg.Settings)
	assert.Equal(t, def.Radio.Name, cfg.Radio.Name)
	assert.Equal(t, def.Radio.AdvertiseInterval, cfg.Radio.AdvertiseInterval)
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, &def, cfg)
}

func TestParseConfigExplicitZero(t *testing.T) {
	tests := map[string]string{
		"no leds":   `num_leds = 0`,
		"zero tick": `tick_interval = "0s"`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := ParseConfig(strings.NewReader(input))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseConfigInvalid(t *testing.T) {
	_, err := ParseConfig(strings.NewReader(`tick_interval = "soon"`))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	def := DefaultConfig()
	require.NoError(t, def.Validate())

	tests := map[string]func(*Config){
		"no leds":         func(c *Config) { c.NumLEDs = 0 },
		"too many leds":   func(c *Config) { c.NumLEDs = 70000 },
		"bad tick":        func(c *Config) { c.TickInterval = -1 },
		"bad backend":     func(c *Config) { c.Settings.Backend = "floppy" },
		"no path":         func(c *Config) { c.Settings.Path = "" },
		"bad output":      func(c *Config) { c.Output.Kind = "vga" },
		"no serial":       func(c *Config) { c.Output.Device = "" },
		"bad serial baud": func(c *Config) { c.Output.Baud = -9600 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
