// Package persist loads and saves parameter snapshots so that the strip comes
// back with the same look after a power loss.
package persist

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"libdb.so/driftglow/internal/params"
)

var (
	// ErrNotFound is returned by Load when nothing was saved yet.
	ErrNotFound = errors.New("no saved settings")
	// ErrCorrupt is returned by Load when the saved settings cannot be used.
	ErrCorrupt = errors.New("corrupt saved settings")
)

// Gateway is a durable home for a single parameter snapshot.
type Gateway interface {
	// Load returns the saved snapshot. Fields missing from storage take their
	// default values.
	Load(ctx context.Context) (params.Snapshot, error)
	// Save replaces the saved snapshot.
	Save(ctx context.Context, snapshot params.Snapshot) error
	// Close releases the underlying storage.
	Close() error
}

// LoadOrDefault loads the saved snapshot from g. Any failure is logged and
// the default snapshot is returned instead.
func LoadOrDefault(ctx context.Context, g Gateway, logger *slog.Logger) params.Snapshot {
	snapshot, err := g.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info("no saved settings, using defaults")
		} else {
			logger.Warn(
				"cannot load saved settings, using defaults",
				"error", err)
		}
		return params.Defaults()
	}

	logger.Info(
		"loaded saved settings",
		"settings", snapshot)
	return snapshot
}

// Saver adapts a Gateway to the command channel. Saves are never retried.
type Saver struct {
	Gateway Gateway
	Logger  *slog.Logger
}

// Save saves the snapshot.
func (s Saver) Save(snapshot params.Snapshot) error {
	if err := s.Gateway.Save(context.Background(), snapshot); err != nil {
		return err
	}

	s.Logger.Info(
		"saved settings",
		"settings", snapshot)
	return nil
}

func checkByte(name string, v int64) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, errors.Wrapf(ErrCorrupt, "%s %d out of range", name, v)
	}
	return uint8(v), nil
}
