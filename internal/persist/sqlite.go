package persist

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"libdb.so/driftglow/internal/params"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS settings (
	id         INTEGER PRIMARY KEY,
	mode       INTEGER NOT NULL,
	red        INTEGER NOT NULL,
	green      INTEGER NOT NULL,
	blue       INTEGER NOT NULL,
	speed      INTEGER NOT NULL,
	brightness INTEGER NOT NULL
)`

// SQLite keeps the snapshot in row 0 of the settings table of an SQLite
// database.
type SQLite struct {
	db *sql.DB
}

var _ Gateway = (*SQLite)(nil)

// OpenSQLite opens the database at the given path, creating the settings
// table if needed.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open settings database")
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize settings database")
	}

	return &SQLite{db: db}, nil
}

// Load implements Gateway.
func (s *SQLite) Load(ctx context.Context) (params.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT mode, red, green, blue, speed, brightness FROM settings WHERE id = 0")

	var v [6]int64
	if err := row.Scan(&v[0], &v[1], &v[2], &v[3], &v[4], &v[5]); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return params.Snapshot{}, ErrNotFound
		}
		return params.Snapshot{}, errors.Wrap(err, "failed to query settings")
	}

	var b [6]uint8
	for i, name := range []string{"mode", "red", "green", "blue", "speed", "brightness"} {
		n, err := checkByte(name, v[i])
		if err != nil {
			return params.Snapshot{}, err
		}
		b[i] = n
	}

	return params.Snapshot{
		Mode:       params.Mode(b[0]),
		Color:      [3]uint8{b[1], b[2], b[3]},
		Speed:      b[4],
		Brightness: b[5],
	}, nil
}

// Save implements Gateway.
func (s *SQLite) Save(ctx context.Context, snapshot params.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settings (id, mode, red, green, blue, speed, brightness)
		VALUES (0, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			mode = excluded.mode,
			red = excluded.red,
			green = excluded.green,
			blue = excluded.blue,
			speed = excluded.speed,
			brightness = excluded.brightness`,
		snapshot.Mode, snapshot.Color.R(), snapshot.Color.G(), snapshot.Color.B(),
		snapshot.Speed, snapshot.Brightness)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to write settings")
	}

	return errors.Wrap(tx.Commit(), "failed to commit settings")
}

// Close implements Gateway.
func (s *SQLite) Close() error {
	return s.db.Close()
}
