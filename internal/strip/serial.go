package strip

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
	"libdb.so/driftglow/internal/anim"
	"libdb.so/driftglow/internal/led"
	"libdb.so/driftglow/ledserial"
)

// ErrNotReady is returned by Serial.Write until the controller has
// acknowledged the initialize packet.
var ErrNotReady = errors.New("serial strip is not ready")

// SerialConfig configures a Serial strip.
type SerialConfig struct {
	// Device is the path to the serial device, usually /dev/ttyUSB0 or
	// /dev/ttyACM0.
	Device string
	// Baud is the baud rate for the serial connection.
	Baud int
	// NumLEDs is the number of LEDs on the strip.
	NumLEDs int
	// AckTimeout is how long to wait for the controller to acknowledge a
	// packet before sending the next one anyway.
	AckTimeout time.Duration
}

// OpenFunc opens the serial port.
type OpenFunc func(device string, baud int) (io.ReadWriteCloser, error)

// OpenSerialPort opens a real serial port.
func OpenSerialPort(device string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to reset read timeout")
	}
	return port, nil
}

// Serial sends frames to a microcontroller using the ledserial protocol. The
// controller is expected to acknowledge every packet.
//
// Write never blocks: frames go into a single-slot mailbox that the port
// goroutine drains. If the controller is slower than the animation, the
// newest frame wins.
type Serial struct {
	cfg    SerialConfig
	open   OpenFunc
	logger *slog.Logger

	leds   led.LEDs
	frames chan []uint8
	ready  atomic.Bool
}

var _ anim.Strip = (*Serial)(nil)

// NewSerial creates a new Serial strip. The port is opened by Run. If open is
// nil, OpenSerialPort is used.
func NewSerial(cfg SerialConfig, open OpenFunc, logger *slog.Logger) *Serial {
	if open == nil {
		open = OpenSerialPort
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = 500 * time.Millisecond
	}
	return &Serial{
		cfg:    cfg,
		open:   open,
		logger: logger,
		leds:   led.NewLEDs(cfg.NumLEDs),
		frames: make(chan []uint8, 1),
	}
}

// Set implements anim.Strip.
func (s *Serial) Set(i int, c led.RGBColor) { s.leds.Set(i, c) }

// Write implements anim.Strip.
func (s *Serial) Write() error {
	if !s.ready.Load() {
		return ErrNotReady
	}

	pix := append([]uint8(nil), s.leds.AsPixels()...)

	// Replace whatever frame is still waiting.
	select {
	case <-s.frames:
	default:
	}
	select {
	case s.frames <- pix:
	default:
	}

	return nil
}

// Serve runs the strip until ctx is canceled. Whenever the port cannot be
// opened or the connection fails, it waits retry and tries again, so the
// controller can be plugged in after the daemon started.
func (s *Serial) Serve(ctx context.Context, retry time.Duration) error {
	for {
		err := s.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn(
			"serial strip stopped, retrying",
			"device", s.cfg.Device,
			"retry", retry,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

// Run opens the port and talks to the controller until ctx is canceled, the
// port fails or the controller reports that it panicked.
func (s *Serial) Run(ctx context.Context) error {
	port, err := s.open(s.cfg.Device, s.cfg.Baud)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %q", s.cfg.Device)
	}
	defer port.Close()
	defer s.ready.Store(false)

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		s.logger.Debug("closing serial port")
		if err := port.Close(); err != nil {
			return errors.Wrap(err, "failed to close serial port")
		}
		return ctx.Err()
	})

	packets := make(chan ledserial.OutgoingPacket)
	errg.Go(func() error {
		return s.readPackets(ctx, port, packets)
	})
	errg.Go(func() error {
		w := &writer{Serial: s, port: port, packets: packets}
		return w.loop(ctx)
	})

	return errg.Wait()
}

// writer sends packets on one connection. Acks only carry the packet type,
// so it tracks whether a packet that timed out may still be acknowledged.
type writer struct {
	*Serial
	port    io.Writer
	packets <-chan ledserial.OutgoingPacket
	// late is set while the ack of a timed out packet is still expected.
	late    bool
}

func (w *writer) loop(ctx context.Context) error {
	w.logger.Debug(
		"sending initialize packet",
		"leds", w.cfg.NumLEDs)

	if err := w.send(ctx, ledserial.InitializePacket{
		NumLEDs: uint16(w.cfg.NumLEDs),
	}); err != nil {
		return errors.Wrap(err, "failed to initialize LEDs")
	}

	w.ready.Store(true)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case pix := <-w.frames:
			if err := w.send(ctx, ledserial.SetPacket{Pix: pix}); err != nil {
				return err
			}

		case r := <-w.packets:
			if ack, ok := r.(ledserial.AckPacket); ok {
				w.late = false
				w.logger.Debug(
					"ignoring late ack",
					"acked_for", ack.IncomingPacketType)
				continue
			}
			if _, err := w.report(r); err != nil {
				return err
			}
		}
	}
}

// send writes p and waits until the controller acknowledges it.
func (w *writer) send(ctx context.Context, p ledserial.IncomingPacket) error {
	if err := ledserial.WriteIncomingPacket(w.port, p); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	timeout := time.NewTimer(w.cfg.AckTimeout)
	defer timeout.Stop()

	// skipped is set once an ack was taken for the previous packet.
	var skipped bool

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timeout.C:
			w.logger.Warn(
				"controller did not acknowledge packet",
				"type", p.Type(),
				"timeout", w.cfg.AckTimeout)
			// An ack skipped during this wait was really ours, so nothing is
			// outstanding anymore.
			w.late = !skipped
			return nil

		case r := <-w.packets:
			ack, ok := r.(ledserial.AckPacket)
			if !ok {
				answered, err := w.report(r)
				if err != nil || answered {
					return err
				}
				continue
			}

			switch {
			case ack.IncomingPacketType != p.Type():
				// Acks arrive in order, so this answers the late packet.
				w.late = false
				w.logger.Debug(
					"ignoring stale ack",
					"acked_for", ack.IncomingPacketType)
			case w.late:
				w.late = false
				skipped = true
				w.logger.Debug(
					"ignoring late ack",
					"acked_for", ack.IncomingPacketType)
			default:
				return nil
			}
		}
	}
}

// report handles a packet from the controller that is not an ack. It returns
// true if the packet answers the packet that was last sent.
func (w *writer) report(r ledserial.OutgoingPacket) (bool, error) {
	switch r := r.(type) {
	case ledserial.ErrorPacket:
		w.logger.Warn(
			"received error packet from controller",
			"message", r.Message)
		return true, nil

	case ledserial.PanicPacket:
		w.logger.Error(
			"controller unrecoverably panicked",
			"message", r.Message)
		return true, errors.New("controller panicked")

	case ledserial.LogPacket:
		w.logger.Info(
			"received log packet from controller",
			"message", r.Message)
	}
	return false, nil
}

func (s *Serial) readPackets(ctx context.Context, port io.Reader, dst chan<- ledserial.OutgoingPacket) error {
	for ctx.Err() == nil {
		p, err := ledserial.ReadOutgoingPacket(port)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ledserial.ErrChecksum) {
				s.logger.Warn("dropping corrupt packet from controller")
				continue
			}
			return errors.Wrap(err, "failed to read packet")
		}

		s.logger.Debug(
			"received packet from controller",
			"type", p.Type())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case dst <- p:
			// ok
		}
	}

	return ctx.Err()
}
