// Package command decodes the commands written by the companion app and
// applies them to the shared parameters.
package command

import (
	"fmt"

	"github.com/pkg/errors"
	"libdb.so/driftglow/internal/led"
	"libdb.so/driftglow/internal/params"
)

// PayloadSize is the size of a command payload:
//
//	[mode, red, green, blue, speed, brightness]
//
// Any bytes past PayloadSize are ignored.
const PayloadSize = 6

// ErrShortPayload is returned when a payload is shorter than PayloadSize.
var ErrShortPayload = errors.New("short command payload")

// Kind is the kind of a command.
type Kind uint8

const (
	KindUpdate Kind = iota
	KindSave
)

// String returns a string representation of the command kind.
func (k Kind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindSave:
		return "save"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Command is a decoded command.
type Command interface {
	// Kind returns the kind of command.
	Kind() Kind
}

// UpdateCommand replaces all parameters at once.
type UpdateCommand struct {
	Snapshot params.Snapshot
}

// SaveCommand asks for the current parameters to be saved. It is sent as an
// update with mode 255; the other bytes are ignored.
type SaveCommand struct{}

func (UpdateCommand) Kind() Kind { return KindUpdate }
func (SaveCommand) Kind() Kind   { return KindSave }

// Decode decodes a command payload.
func Decode(b []byte) (Command, error) {
	if len(b) < PayloadSize {
		return nil, errors.Wrapf(ErrShortPayload, "got %d bytes", len(b))
	}

	if params.Mode(b[0]) == params.ModeSave {
		return SaveCommand{}, nil
	}

	return UpdateCommand{
		Snapshot: params.Snapshot{
			Mode:       params.Mode(b[0]),
			Color:      led.RGB(b[1], b[2], b[3]),
			Speed:      b[4],
			Brightness: b[5],
		},
	}, nil
}

// Encode encodes a command into its payload.
func Encode(c Command) ([]byte, error) {
	switch c := c.(type) {
	case UpdateCommand:
		if c.Snapshot.Mode == params.ModeSave {
			return nil, errors.New("mode 255 is reserved for saving")
		}
		s := c.Snapshot
		return []byte{uint8(s.Mode), s.Color[0], s.Color[1], s.Color[2], s.Speed, s.Brightness}, nil
	case SaveCommand:
		return []byte{uint8(params.ModeSave), 0, 0, 0, 0, 0}, nil
	default:
		return nil, fmt.Errorf("unknown command type: %T", c)
	}
}
