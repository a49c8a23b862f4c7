package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"document_notifier/internal/domain/contact"
	"document_notifier/internal/domain/document"

	"github.com/sirupsen/logrus"
)

// GlobalConfigFile is the file name of the editable global CC record.
const GlobalConfigFile = "global_config.json"

// ErrCorruptFile is returned when a whole contact file cannot be parsed. Callers that
// write must not overwrite such a file.
var ErrCorruptFile = errors.New("contact file is not valid JSON")

// FileRepository stores one mapping file per document kind plus the global CC file, all
// in a single directory.
type FileRepository struct {
	dir   string
	files map[document.Kind]string
	log   *logrus.Entry
}

func NewFileRepository(dir string, files map[document.Kind]string, log *logrus.Entry) *FileRepository {
	return &FileRepository{dir: dir, files: files, log: log}
}

func (r *FileRepository) Dir() string { return r.dir }

func (r *FileRepository) mappingPath(kind document.Kind) (string, error) {
	name, ok := r.files[kind]
	if !ok || name == "" {
		return "", fmt.Errorf("no contact file configured for %s", kind)
	}
	return filepath.Join(r.dir, name), nil
}

// Mappings loads the override mapping for kind. Entries that fail to parse are logged and
// left out; the rest of the file still applies.
func (r *FileRepository) Mappings(ctx context.Context, kind document.Kind) (map[string]contact.Entry, error) {
	_ = ctx
	path, err := r.mappingPath(kind)
	if err != nil {
		return nil, err
	}
	raw, err := readJSONObject(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]contact.Entry, len(raw))
	for id, value := range raw {
		entry, err := contact.ParseEntry(value)
		if err != nil {
			if r.log != nil {
				r.log.WithError(err).WithFields(logrus.Fields{"path": path, "party": id}).Warn("Skipping malformed contact entry")
			}
			continue
		}
		out[id] = entry
	}
	return out, nil
}

func (r *FileRepository) SaveMappings(ctx context.Context, kind document.Kind, mappings map[string]contact.Entry) error {
	_ = ctx
	path, err := r.mappingPath(kind)
	if err != nil {
		return err
	}
	if mappings == nil {
		mappings = map[string]contact.Entry{}
	}
	return writeJSON(path, mappings)
}

func (r *FileRepository) GlobalConfig(ctx context.Context) (contact.GlobalCC, error) {
	_ = ctx
	path := filepath.Join(r.dir, GlobalConfigFile)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return contact.GlobalCC{}, nil
	}
	if err != nil {
		return contact.GlobalCC{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var cfg contact.GlobalCC
	if len(bytes.TrimSpace(b)) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return contact.GlobalCC{}, fmt.Errorf("%w: %s: %v", ErrCorruptFile, path, err)
	}
	return cfg, nil
}

func (r *FileRepository) SaveGlobalConfig(ctx context.Context, cfg contact.GlobalCC) error {
	_ = ctx
	return writeJSON(filepath.Join(r.dir, GlobalConfigFile), cfg)
}

func readJSONObject(path string) (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptFile, path, err)
	}
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}
	return raw, nil
}

// writeJSON writes v with 4-space indentation through a temp file and rename.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
