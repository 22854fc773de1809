// Package driftglow is the LED accessory daemon. It renders animations onto an
// LED strip and takes its parameters from commands written over Bluetooth Low
// Energy.
package driftglow

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"libdb.so/driftglow/internal/anim"
	"libdb.so/driftglow/internal/command"
	"libdb.so/driftglow/internal/params"
	"libdb.so/driftglow/internal/persist"
	"libdb.so/driftglow/internal/radio"
	"libdb.so/driftglow/internal/strip"
)

// Radio is the transport that delivers commands to the daemon.
type Radio interface {
	command.Advertiser
	// Serve starts delivering radio events to h. It returns once the radio
	// is set up.
	Serve(h radio.Handler) error
	// Stop stops the radio.
	Stop() error
}

var _ Radio = (*radio.Peripheral)(nil)

// Daemon is the main driftglow daemon.
type Daemon struct {
	cfg    *Config
	logger *slog.Logger
	radio  Radio
	store  atomic.Pointer[params.Store]
}

// NewDaemon creates a new driftglow daemon.
func NewDaemon(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	d := &Daemon{
		cfg:    cfg,
		logger: logger,
	}

	if !cfg.Radio.Disabled {
		d.radio = radio.NewPeripheral(radio.Config{
			Name:     cfg.Radio.Name,
			Interval: time.Duration(cfg.Radio.AdvertiseInterval),
		}, logger.With("component", "radio"))
	}

	return d, nil
}

// Parameters returns the current parameters. It returns false if the daemon
// is not running yet.
func (d *Daemon) Parameters() (params.Snapshot, bool) {
	store := d.store.Load()
	if store == nil {
		return params.Snapshot{}, false
	}
	return store.Load(), true
}

// Run starts the daemon. It blocks until the given context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	gateway, err := d.openSettings()
	if err != nil {
		return err
	}
	defer gateway.Close()

	store := params.NewStore(persist.LoadOrDefault(ctx, gateway, d.logger.With("component", "settings")))
	d.store.Store(store)

	errg, ctx := errgroup.WithContext(ctx)

	output, err := d.openStrip(ctx, errg)
	if err != nil {
		return err
	}

	engine := anim.New(store, output, anim.Options{
		NumLEDs: d.cfg.NumLEDs,
		Logger:  d.logger.With("component", "anim"),
	})
	errg.Go(func() error {
		return engine.Run(ctx, time.Duration(d.cfg.TickInterval))
	})

	if d.radio != nil {
		channel := command.NewChannel(
			store,
			persist.Saver{Gateway: gateway, Logger: d.logger.With("component", "settings")},
			d.radio,
			d.logger.With("component", "command"))

		// Without a radio the strip keeps showing the saved look, so a
		// broken adapter is not fatal.
		if err := d.radio.Serve(channel); err != nil {
			d.logger.Error(
				"failed to start radio, running without commands",
				"error", err)
		} else {
			errg.Go(func() error {
				<-ctx.Done()
				if err := d.radio.Stop(); err != nil {
					d.logger.Warn(
						"failed to stop radio",
						"error", err)
				}
				return ctx.Err()
			})
		}
	}

	return errg.Wait()
}

func (d *Daemon) openSettings() (persist.Gateway, error) {
	switch d.cfg.Settings.Backend {
	case SQLiteBackend:
		db, err := persist.OpenSQLite(d.cfg.Settings.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return persist.NewFile(d.cfg.Settings.Path), nil
	}
}

func (d *Daemon) openStrip(ctx context.Context, errg *errgroup.Group) (anim.Strip, error) {
	logger := d.logger.With("component", "strip")

	switch d.cfg.Output.Kind {
	case SerialOutput:
		s := strip.NewSerial(strip.SerialConfig{
			Device:  d.cfg.Output.Device,
			Baud:    d.cfg.Output.Baud,
			NumLEDs: d.cfg.NumLEDs,
		}, nil, logger)
		errg.Go(func() error {
			return s.Serve(ctx, time.Duration(d.cfg.Output.Retry))
		})
		return s, nil

	case APA102Output:
		s, err := strip.OpenAPA102(strip.APA102Config{
			Port:    d.cfg.Output.SPIPort,
			Hz:      d.cfg.Output.SPIHz,
			NumLEDs: d.cfg.NumLEDs,
		})
		if err != nil {
			return nil, err
		}
		closeOnDone(ctx, errg, s)
		return s, nil

	default:
		return strip.NewLog(d.cfg.NumLEDs, logger), nil
	}
}

func closeOnDone(ctx context.Context, errg *errgroup.Group, c io.Closer) {
	errg.Go(func() error {
		<-ctx.Done()
		if err := c.Close(); err != nil {
			return errors.Wrap(err, "failed to close strip")
		}
		return ctx.Err()
	})
}
