package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"document_notifier/internal/domain/checkpoint"

	"github.com/sirupsen/logrus"
)

// Config selects and locates the state backend for one monitor.
type Config struct {
	Driver         string // "file" (default) or "sqlite"
	Dir            string
	SQLitePath     string
	Monitor        string
	CheckpointFile string
	ProcessedFile  string
}

// State bundles the two persistent values of a monitor.
type State struct {
	Checkpoint checkpoint.Store
	Processed  checkpoint.ProcessedSet
	closer     func() error
}

func (s *State) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// Open initializes the configured backend. The processed set is always available, even
// for monitors that never consult it, so operator tooling can inspect it.
func Open(cfg Config, log *logrus.Entry) (*State, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		cp := NewFileCheckpoint(filepath.Join(cfg.Dir, cfg.CheckpointFile))
		ps, err := OpenProcessedFile(filepath.Join(cfg.Dir, cfg.ProcessedFile), log)
		if err != nil {
			return nil, err
		}
		return &State{Checkpoint: cp, Processed: ps}, nil
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Dir, "notifier_state.db")
		}
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		m := db.Monitor(cfg.Monitor)
		return &State{Checkpoint: m, Processed: m, closer: db.Close}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
