// Package radio exposes the command channel over Bluetooth Low Energy. The
// device shows up as a Nordic UART service whose RX characteristic accepts
// command writes.
package radio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"libdb.so/driftglow/internal/command"
	"tinygo.org/x/bluetooth"
)

// DefaultName is the advertised local name.
const DefaultName = "Dr!ft_Lader"

// Handler receives the radio events. *command.Channel implements it.
type Handler interface {
	HandleConnect(link command.LinkID)
	HandleDisconnect(link command.LinkID)
	HandleWrite(payload []byte)
}

var _ Handler = (*command.Channel)(nil)

// Config configures a Peripheral.
type Config struct {
	// Name is the advertised local name.
	Name string
	// Interval is the advertising interval.
	Interval time.Duration
}

// Peripheral is the BLE side of the device.
type Peripheral struct {
	cfg     Config
	adapter *bluetooth.Adapter
	logger  *slog.Logger

	mu  sync.Mutex
	adv *bluetooth.Advertisement
	rx  bluetooth.Characteristic
}

var _ command.Advertiser = (*Peripheral)(nil)

// NewPeripheral creates a new Peripheral on the default adapter.
func NewPeripheral(cfg Config, logger *slog.Logger) *Peripheral {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Interval == 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	return &Peripheral{
		cfg:     cfg,
		adapter: bluetooth.DefaultAdapter,
		logger:  logger,
	}
}

// Serve enables the adapter, registers the UART service with h as the
// receiver of all events and starts advertising. Events are delivered on the
// radio stack's own goroutine; Serve itself returns once everything is set
// up.
func (p *Peripheral) Serve(h Handler) error {
	if err := p.adapter.Enable(); err != nil {
		return errors.Wrap(err, "failed to enable BLE adapter")
	}

	p.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		link := command.LinkID(device.Address.String())
		if connected {
			h.HandleConnect(link)
		} else {
			h.HandleDisconnect(link)
		}
	})

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.ServiceUUIDNordicUART,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &p.rx,
				UUID:   bluetooth.CharacteristicUUIDUARTRX,
				Flags: bluetooth.CharacteristicWritePermission |
					bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					if offset != 0 {
						p.logger.Debug(
							"ignoring write at non-zero offset",
							"offset", offset)
						return
					}
					h.HandleWrite(value)
				},
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to register UART service")
	}

	p.adv = p.adapter.DefaultAdvertisement()
	if err := p.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    p.cfg.Name,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.ServiceUUIDNordicUART},
		Interval:     bluetooth.NewDuration(p.cfg.Interval),
	}); err != nil {
		return errors.Wrap(err, "failed to configure advertisement")
	}

	return p.startAdvertising()
}

// Advertise restarts advertising. It implements command.Advertiser.
func (p *Peripheral) Advertise() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.adv == nil {
		return errors.New("peripheral is not serving")
	}

	// BlueZ refuses to start an advertisement that is already running.
	p.adv.Stop()
	return p.startAdvertising()
}

func (p *Peripheral) startAdvertising() error {
	if err := p.adv.Start(); err != nil {
		return errors.Wrap(err, "failed to start advertising")
	}

	p.logger.Info(
		"advertising",
		"name", p.cfg.Name,
		"interval", p.cfg.Interval)
	return nil
}

// Stop stops advertising.
func (p *Peripheral) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.adv == nil {
		return nil
	}
	return p.adv.Stop()
}
