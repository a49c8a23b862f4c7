package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"document_notifier/internal/domain/checkpoint"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	monitor    TEXT PRIMARY KEY,
	cursor     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS processed_identities (
	monitor      TEXT NOT NULL,
	identity     TEXT NOT NULL,
	processed_at TEXT NOT NULL,
	PRIMARY KEY (monitor, identity)
);
`

// SQLiteDB holds the state of every monitor in one database file.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the state database and applies the schema.
func OpenSQLite(path string) (*SQLiteDB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite state db: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Monitor returns the state view for one monitor name.
func (s *SQLiteDB) Monitor(name string) *SQLiteMonitor {
	return &SQLiteMonitor{db: s.db, monitor: name}
}

// SQLiteMonitor implements both checkpoint.Store and checkpoint.ProcessedSet.
type SQLiteMonitor struct {
	db      *sql.DB
	monitor string
}

func (m *SQLiteMonitor) Load(ctx context.Context) (time.Time, bool, error) {
	var raw string
	err := m.db.QueryRowContext(ctx, `SELECT cursor FROM checkpoints WHERE monitor = ?`, m.monitor).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("error loading checkpoint for %s: %w", m.monitor, err)
	}
	ts, err := ParseCursor(raw)
	if err != nil {
		return time.Time{}, true, fmt.Errorf("%w: monitor %s: %v", checkpoint.ErrCorrupt, m.monitor, err)
	}
	return ts, true, nil
}

func (m *SQLiteMonitor) Save(ctx context.Context, cursor time.Time) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO checkpoints(monitor, cursor, updated_at) VALUES(?,?,?)
		 ON CONFLICT(monitor) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
		m.monitor, FormatCursor(cursor), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("error saving checkpoint for %s: %w", m.monitor, err)
	}
	return nil
}

func (m *SQLiteMonitor) Contains(ctx context.Context, identity string) (bool, error) {
	var one int
	err := m.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_identities WHERE monitor = ? AND identity = ?`,
		m.monitor, strings.TrimSpace(identity),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking processed identity: %w", err)
	}
	return true, nil
}

func (m *SQLiteMonitor) Add(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil
	}
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO processed_identities(monitor, identity, processed_at) VALUES(?,?,?)
		 ON CONFLICT(monitor, identity) DO NOTHING`,
		m.monitor, identity, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("error adding processed identity: %w", err)
	}
	return nil
}

func (m *SQLiteMonitor) Len(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_identities WHERE monitor = ?`, m.monitor,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting processed identities: %w", err)
	}
	return n, nil
}
