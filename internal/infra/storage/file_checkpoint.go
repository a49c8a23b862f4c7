package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"document_notifier/internal/domain/checkpoint"
)

// cursorLayout is a naive ISO-8601 timestamp in UTC, the form existing checkpoint files use.
const cursorLayout = "2006-01-02T15:04:05.999999"

var cursorParseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// FileCheckpoint stores the cursor as a single timestamp line.
type FileCheckpoint struct {
	path string
}

func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

func (f *FileCheckpoint) Path() string { return f.path }

func (f *FileCheckpoint) Load(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read checkpoint %s: %w", f.path, err)
	}
	ts, err := ParseCursor(string(b))
	if err != nil {
		return time.Time{}, true, fmt.Errorf("%w: %s: %v", checkpoint.ErrCorrupt, f.path, err)
	}
	return ts, true, nil
}

func (f *FileCheckpoint) Save(ctx context.Context, cursor time.Time) error {
	_ = ctx
	return writeFileAtomic(f.path, []byte(FormatCursor(cursor)))
}

// ParseCursor reads a persisted cursor. Values without an offset are taken as UTC.
func ParseCursor(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	var lastErr error
	for _, layout := range cursorParseLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FormatCursor is the inverse of ParseCursor.
func FormatCursor(ts time.Time) string {
	return ts.UTC().Format(cursorLayout)
}

// writeFileAtomic writes to a sibling temp file and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
