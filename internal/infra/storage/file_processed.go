package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileProcessedSet keeps the processed identities in memory and rewrites the whole JSON
// array file after every addition.
type FileProcessedSet struct {
	path string

	mu    sync.Mutex
	set   map[string]struct{}
	order []string
}

// OpenProcessedFile loads path. A missing file starts an empty set; an unreadable one is
// logged and also starts empty, matching what operators expect after deleting or
// hand-editing the file.
func OpenProcessedFile(path string, log *logrus.Entry) (*FileProcessedSet, error) {
	s := &FileProcessedSet{path: path, set: map[string]struct{}{}}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read processed set %s: %w", path, err)
	}

	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		if log != nil {
			log.WithError(err).WithField("path", path).Warn("Processed identity file is corrupt, starting with an empty set")
		}
		return s, nil
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := s.set[id]; dup {
			continue
		}
		s.set[id] = struct{}{}
		s.order = append(s.order, id)
	}
	return s, nil
}

func (s *FileProcessedSet) Contains(ctx context.Context, identity string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[strings.TrimSpace(identity)]
	return ok, nil
}

// Add records identity. The in-memory set is updated even when the file write fails, so
// the running process still never re-notifies it.
func (s *FileProcessedSet) Add(ctx context.Context, identity string) error {
	_ = ctx
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[identity]; ok {
		return nil
	}
	s.set[identity] = struct{}{}
	s.order = append(s.order, identity)

	b, err := json.Marshal(s.order)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, b); err != nil {
		return fmt.Errorf("failed to persist processed set %s: %w", s.path, err)
	}
	return nil
}

func (s *FileProcessedSet) Len(ctx context.Context) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set), nil
}
