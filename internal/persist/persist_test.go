package persist

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/driftglow/internal/led"
	"libdb.so/driftglow/internal/params"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeSettings(t *testing.T, content string) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return NewFile(path)
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := NewFile(filepath.Join(t.TempDir(), "settings.toml"))

	_, err := f.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	want := params.Snapshot{
		Mode:       params.ModeRainbow,
		Color:      led.RGB(10, 20, 30),
		Speed:      7,
		Brightness: 200,
	}
	require.NoError(t, f.Save(ctx, want))

	got, err := f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Saving again replaces the old content.
	want.Mode = params.ModeScanner
	require.NoError(t, f.Save(ctx, want))

	got, err = f.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileMissingFields(t *testing.T) {
	f := writeSettings(t, "speed = 3\ncolor = [1, 2, 3]\n")

	got, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, params.Snapshot{
		Mode:       params.ModeComet,
		Color:      led.RGB(1, 2, 3),
		Speed:      3,
		Brightness: 128,
	}, got)
}

func TestFileCorrupt(t *testing.T) {
	tests := map[string]string{
		"syntax":         "mode = = 3",
		"wrong type":     `mode = "comet"`,
		"out of range":   "brightness = 256",
		"negative":       "speed = -1",
		"short color":    "color = [1, 2]",
		"color elements": `color = ["a", "b", "c"]`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			f := writeSettings(t, content)

			_, err := f.Load(context.Background())
			assert.ErrorIs(t, err, ErrCorrupt)

			got := LoadOrDefault(context.Background(), f, discardLogger)
			assert.Equal(t, params.Defaults(), got)
		})
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, params.Defaults(), LoadOrDefault(ctx, db, discardLogger))

	want := params.Snapshot{
		Mode:       params.ModeHeartbeat,
		Color:      led.RGB(0, 128, 255),
		Speed:      255,
		Brightness: 1,
	}
	require.NoError(t, db.Save(ctx, want))
	require.NoError(t, db.Save(ctx, want))

	got, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

type failingGateway struct{ *File }

func (failingGateway) Save(context.Context, params.Snapshot) error {
	return errors.New("disk full")
}

func TestSaverReportsErrors(t *testing.T) {
	s := Saver{Gateway: failingGateway{}, Logger: discardLogger}
	assert.EqualError(t, s.Save(params.Defaults()), "disk full")
}
