package persist

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/driftglow/internal/params"
)

// fileRecord is the on-disk layout of the settings file.
type fileRecord struct {
	Mode       int   `toml:"mode"`
	Color      []int `toml:"color"`
	Speed      int   `toml:"speed"`
	Brightness int   `toml:"brightness"`
}

// File keeps the snapshot in a TOML file.
type File struct {
	path string
}

var _ Gateway = (*File)(nil)

// NewFile creates a new File gateway at the given path. The file does not
// have to exist yet.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load implements Gateway.
func (f *File) Load(ctx context.Context) (params.Snapshot, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return params.Snapshot{}, ErrNotFound
		}
		return params.Snapshot{}, errors.Wrap(err, "failed to read settings file")
	}

	tree, err := toml.LoadBytes(b)
	if err != nil {
		return params.Snapshot{}, errors.Wrapf(ErrCorrupt, "failed to parse settings file: %v", err)
	}

	return snapshotFromTree(tree)
}

func snapshotFromTree(tree *toml.Tree) (params.Snapshot, error) {
	snapshot := params.Defaults()

	mode := uint8(snapshot.Mode)
	for _, field := range []struct {
		key string
		dst *uint8
	}{
		{"mode", &mode},
		{"speed", &snapshot.Speed},
		{"brightness", &snapshot.Brightness},
	} {
		if !tree.Has(field.key) {
			continue
		}
		v, ok := tree.Get(field.key).(int64)
		if !ok {
			return params.Snapshot{}, errors.Wrapf(ErrCorrupt, "%s is not an integer", field.key)
		}
		b, err := checkByte(field.key, v)
		if err != nil {
			return params.Snapshot{}, err
		}
		*field.dst = b
	}
	snapshot.Mode = params.Mode(mode)

	if tree.Has("color") {
		values, ok := tree.Get("color").([]interface{})
		if !ok || len(values) != 3 {
			return params.Snapshot{}, errors.Wrap(ErrCorrupt, "color is not a 3-element array")
		}
		for i, v := range values {
			n, ok := v.(int64)
			if !ok {
				return params.Snapshot{}, errors.Wrap(ErrCorrupt, "color element is not an integer")
			}
			b, err := checkByte("color", n)
			if err != nil {
				return params.Snapshot{}, err
			}
			snapshot.Color[i] = b
		}
	}

	return snapshot, nil
}

// Save implements Gateway. The file is replaced atomically.
func (f *File) Save(ctx context.Context, snapshot params.Snapshot) error {
	b, err := toml.Marshal(fileRecord{
		Mode:       int(snapshot.Mode),
		Color:      []int{int(snapshot.Color.R()), int(snapshot.Color.G()), int(snapshot.Color.B())},
		Speed:      int(snapshot.Speed),
		Brightness: int(snapshot.Brightness),
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".settings-*.toml")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary settings file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write settings")
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close settings file")
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrap(err, "failed to replace settings file")
	}

	return nil
}

// Close implements Gateway.
func (f *File) Close() error { return nil }
