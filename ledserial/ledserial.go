// Package ledserial implements the serial protocol spoken between driftglow
// and a microcontroller that drives the LED strip.
//
// Every packet is a one-byte type, a type-specific body and a little-endian
// CRC32 (IEEE) of the type and body. The host sends Incoming packets; the
// controller answers with Outgoing packets.
package ledserial

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

// Endianness defines the endianness of the protocol.
var Endianness = binary.LittleEndian

// ErrChecksum is returned when a packet's checksum does not match.
var ErrChecksum = errors.New("packet checksum mismatch")

// IncomingPacketType is the type of a packet sent to the controller.
type IncomingPacketType uint8

const (
	TypeInitializePacket IncomingPacketType = iota
	TypeClearPacket
	TypeSetPacket
)

// String returns a string representation of the packet type.
func (t IncomingPacketType) String() string {
	switch t {
	case TypeInitializePacket:
		return "initialize"
	case TypeClearPacket:
		return "clear"
	case TypeSetPacket:
		return "set"
	default:
		return fmt.Sprintf("IncomingPacketType(%d)", t)
	}
}

// IncomingPacket is a packet sent to the controller.
type IncomingPacket interface {
	// Type returns the type of packet.
	Type() IncomingPacketType
}

// InitializePacket tells the controller how long the strip is.
type InitializePacket struct {
	NumLEDs uint16
}

// ClearPacket turns every LED off.
type ClearPacket struct{}

// SetPacket sets the LED strip to the given colors, 3 bytes per LED.
type SetPacket struct {
	Pix []uint8
}

func (p InitializePacket) Type() IncomingPacketType { return TypeInitializePacket }
func (p ClearPacket) Type() IncomingPacketType      { return TypeClearPacket }
func (p SetPacket) Type() IncomingPacketType        { return TypeSetPacket }

// OutgoingPacketType is the type of a packet sent by the controller.
type OutgoingPacketType uint8

const (
	TypeAckPacket OutgoingPacketType = iota
	TypeErrorPacket
	TypePanicPacket
	TypeLogPacket
)

// String returns a string representation of the packet type.
func (t OutgoingPacketType) String() string {
	switch t {
	case TypeAckPacket:
		return "ack"
	case TypeErrorPacket:
		return "error"
	case TypePanicPacket:
		return "panic"
	case TypeLogPacket:
		return "log"
	default:
		return fmt.Sprintf("OutgoingPacketType(%d)", t)
	}
}

// OutgoingPacket is a packet sent by the controller.
type OutgoingPacket interface {
	// Type returns the type of packet.
	Type() OutgoingPacketType
}

// AckPacket acknowledges an incoming packet. The host waits for it before
// sending the next frame.
type AckPacket struct {
	IncomingPacketType IncomingPacketType
}

// ErrorPacket reports an error the controller recovered from.
type ErrorPacket struct {
	Message string
}

// PanicPacket reports that the controller cannot recover.
type PanicPacket struct {
	Message string
}

// LogPacket carries a log message from the controller.
type LogPacket struct {
	Message string
}

func (p AckPacket) Type() OutgoingPacketType   { return TypeAckPacket }
func (p ErrorPacket) Type() OutgoingPacketType { return TypeErrorPacket }
func (p PanicPacket) Type() OutgoingPacketType { return TypePanicPacket }
func (p LogPacket) Type() OutgoingPacketType   { return TypeLogPacket }

// ReadContext is what the reader needs to know to size incoming packets.
type ReadContext struct {
	// NumLEDs is the number of LEDs in the strip.
	NumLEDs uint16
}

// checksummed wraps a packet's fields so that the checksum covers exactly the
// bytes that went through it.
type checksummed struct {
	hash interface {
		io.Writer
		Sum32() uint32
	}
}

func newChecksummed() checksummed {
	return checksummed{hash: crc32.NewIEEE()}
}

func (c checksummed) reader(r io.Reader) io.Reader { return io.TeeReader(r, c.hash) }
func (c checksummed) writer(w io.Writer) io.Writer { return io.MultiWriter(w, c.hash) }

func (c checksummed) write(w io.Writer) error {
	return binary.Write(w, Endianness, c.hash.Sum32())
}

func (c checksummed) verify(r io.Reader) error {
	sum := c.hash.Sum32()

	var checksum uint32
	if err := binary.Read(r, Endianness, &checksum); err != nil {
		return errors.Wrap(err, "failed to read packet checksum")
	}
	if checksum != sum {
		return ErrChecksum
	}
	return nil
}

// WriteIncomingPacket writes a packet for the controller.
func WriteIncomingPacket(w io.Writer, p IncomingPacket) error {
	sum := newChecksummed()
	hw := sum.writer(w)

	if err := binary.Write(hw, Endianness, p.Type()); err != nil {
		return errors.Wrap(err, "failed to write packet type")
	}

	switch p := p.(type) {
	case InitializePacket:
		if err := binary.Write(hw, Endianness, p); err != nil {
			return errors.Wrap(err, "failed to write number of LEDs")
		}
	case ClearPacket:
	case SetPacket:
		if _, err := hw.Write(p.Pix); err != nil {
			return errors.Wrap(err, "failed to write pixel data")
		}
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	return errors.Wrap(sum.write(w), "failed to write packet checksum")
}

// ReadIncomingPacket reads a packet meant for the controller.
func ReadIncomingPacket(r io.Reader, context ReadContext) (IncomingPacket, error) {
	sum := newChecksummed()
	hr := sum.reader(r)

	var ptype IncomingPacketType
	if err := binary.Read(hr, Endianness, &ptype); err != nil {
		return nil, errors.Wrap(err, "failed to read incoming packet type")
	}

	var packet IncomingPacket
	switch ptype {
	case TypeInitializePacket:
		var p InitializePacket
		if err := binary.Read(hr, Endianness, &p); err != nil {
			return nil, errors.Wrap(err, "failed to read number of LEDs")
		}
		packet = p

	case TypeClearPacket:
		packet = ClearPacket{}

	case TypeSetPacket:
		p := SetPacket{Pix: make([]uint8, 3*int(context.NumLEDs))}
		if _, err := io.ReadFull(hr, p.Pix); err != nil {
			return nil, errors.Wrap(err, "failed to read pixel data")
		}
		packet = p

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	if err := sum.verify(r); err != nil {
		return nil, err
	}

	return packet, nil
}

// WriteOutgoingPacket writes a packet as the controller would.
func WriteOutgoingPacket(w io.Writer, p OutgoingPacket) error {
	sum := newChecksummed()
	hw := sum.writer(w)

	if err := binary.Write(hw, Endianness, p.Type()); err != nil {
		return errors.Wrap(err, "failed to write packet type")
	}

	switch p := p.(type) {
	case AckPacket:
		if err := binary.Write(hw, Endianness, p.IncomingPacketType); err != nil {
			return errors.Wrap(err, "failed to write acked packet type")
		}
	case ErrorPacket:
		if err := writeMessage(hw, p.Message); err != nil {
			return err
		}
	case PanicPacket:
		if err := writeMessage(hw, p.Message); err != nil {
			return err
		}
	case LogPacket:
		if err := writeMessage(hw, p.Message); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	return errors.Wrap(sum.write(w), "failed to write packet checksum")
}

// ReadOutgoingPacket reads a packet sent by the controller.
func ReadOutgoingPacket(r io.Reader) (OutgoingPacket, error) {
	sum := newChecksummed()
	hr := sum.reader(r)

	var ptype OutgoingPacketType
	if err := binary.Read(hr, Endianness, &ptype); err != nil {
		return nil, errors.Wrap(err, "failed to read outgoing packet type")
	}

	var packet OutgoingPacket
	switch ptype {
	case TypeAckPacket:
		var p AckPacket
		if err := binary.Read(hr, Endianness, &p.IncomingPacketType); err != nil {
			return nil, errors.Wrap(err, "failed to read acked packet type")
		}
		packet = p

	case TypeErrorPacket, TypePanicPacket, TypeLogPacket:
		msg, err := readMessage(hr)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s message", ptype)
		}
		switch ptype {
		case TypeErrorPacket:
			packet = ErrorPacket{Message: msg}
		case TypePanicPacket:
			packet = PanicPacket{Message: msg}
		default:
			packet = LogPacket{Message: msg}
		}

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	if err := sum.verify(r); err != nil {
		return nil, err
	}

	return packet, nil
}

func writeMessage(w io.Writer, msg string) error {
	if len(msg) > 0xFFFF {
		msg = msg[:0xFFFF]
	}
	if err := binary.Write(w, Endianness, uint16(len(msg))); err != nil {
		return errors.Wrap(err, "failed to write message length")
	}
	if _, err := io.WriteString(w, msg); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

func readMessage(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, Endianness, &length); err != nil {
		return "", errors.Wrap(err, "failed to read message length")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
