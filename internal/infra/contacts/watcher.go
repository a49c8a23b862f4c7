package contacts

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"document_notifier/internal/domain/contact"
	"document_notifier/internal/domain/document"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher is the dispatch-side contact.Provider. It keeps the last good copy of every
// contact file in memory and reloads when the files change on disk.
type Watcher struct {
	repo  *FileRepository
	kinds []document.Kind
	log   *logrus.Entry

	mu       sync.RWMutex
	mappings map[document.Kind]map[string]contact.Entry
	global   contact.GlobalCC

	ready     chan struct{}
	readyOnce sync.Once
}

func NewWatcher(repo *FileRepository, kinds []document.Kind, log *logrus.Entry) *Watcher {
	return &Watcher{
		repo:     repo,
		kinds:    kinds,
		log:      log,
		mappings: make(map[document.Kind]map[string]contact.Entry, len(kinds)),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once Run watches the directory; edits after that are picked up.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Reload reads every file once. A file that cannot be read keeps its previous contents
// in memory; the first such error is returned after all files were tried.
func (w *Watcher) Reload(ctx context.Context) error {
	var firstErr error
	for _, kind := range w.kinds {
		m, err := w.repo.Mappings(ctx, kind)
		if err != nil {
			w.log.WithError(err).WithField("kind", kind).Warn("Contact mappings not reloaded, keeping previous copy")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		w.mu.Lock()
		w.mappings[kind] = m
		w.mu.Unlock()
	}

	g, err := w.repo.GlobalConfig(ctx)
	if err != nil {
		w.log.WithError(err).Warn("Global CC config not reloaded, keeping previous copy")
		if firstErr == nil {
			firstErr = err
		}
	} else {
		w.mu.Lock()
		w.global = g
		w.mu.Unlock()
	}
	return firstErr
}

// Lookup finds the override for partyID. Keys saved through the admin API are upper-case,
// so an exact miss is retried upper-cased.
func (w *Watcher) Lookup(kind document.Kind, partyID string) (contact.Entry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m := w.mappings[kind]
	id := strings.TrimSpace(partyID)
	if e, ok := m[id]; ok {
		return e, true
	}
	e, ok := m[strings.ToUpper(id)]
	return e, ok
}

func (w *Watcher) GlobalCC(kind document.Kind) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.global.For(kind)
}

// Run watches the contacts directory until ctx is done. Editors replace files by rename,
// so the directory is watched rather than the files.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.repo.Dir()); err != nil {
		return err
	}

	watched := map[string]struct{}{GlobalConfigFile: {}}
	for _, kind := range w.kinds {
		if name := w.repo.files[kind]; name != "" {
			watched[name] = struct{}{}
		}
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			if err := w.Reload(ctx); err == nil {
				w.log.Info("Contact files reloaded")
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	w.log.WithField("dir", w.repo.Dir()).Info("Watching contact files")
	w.readyOnce.Do(func() { close(w.ready) })
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if _, hit := watched[filepath.Base(ev.Name)]; !hit {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debounce()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Contact file watcher error")
		}
	}
}
