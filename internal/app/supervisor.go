package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"document_notifier/internal/domain/document"
	"document_notifier/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// State is a supervisor loop state.
type State string

const (
	StateConnecting      State = "CONNECTING"
	StateMonitoring      State = "MONITORING"
	StateProcessingBatch State = "PROCESSING_BATCH"
	StateReconnecting    State = "RECONNECTING"
	StateStopped         State = "STOPPED"
)

var allStates = []string{
	string(StateConnecting), string(StateMonitoring), string(StateProcessingBatch),
	string(StateReconnecting), string(StateStopped),
}

// Supervisor drives one monitor: poll, dispatch, advance, sleep, and reconnect on failure.
type Supervisor struct {
	monitor      string
	pollInterval time.Duration
	source       document.Source
	engine       *Engine
	cursor       *Cursor
	alerter      Alerter
	sleep        Sleeper
	log          *logrus.Entry

	mu    sync.RWMutex
	state State
}

// SupervisorDeps are the collaborators of a Supervisor. Alerter and Sleep are optional.
type SupervisorDeps struct {
	Source  document.Source
	Engine  *Engine
	Cursor  *Cursor
	Alerter Alerter
	Sleep   Sleeper
	Log     *logrus.Entry
}

func NewSupervisor(monitor string, pollInterval time.Duration, deps SupervisorDeps) *Supervisor {
	s := &Supervisor{
		monitor:      monitor,
		pollInterval: pollInterval,
		source:       deps.Source,
		engine:       deps.Engine,
		cursor:       deps.Cursor,
		alerter:      deps.Alerter,
		sleep:        deps.Sleep,
		log:          deps.Log,
		state:        StateStopped,
	}
	if s.alerter == nil {
		s.alerter = NopAlerter{}
	}
	if s.sleep == nil {
		s.sleep = SleepContext
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return s
}

// MonitorStatus is a point-in-time view of one monitor for operators.
type MonitorStatus struct {
	Monitor string
	State   State
	Cursor  time.Time
	Stats   StatsSnapshot
}

func (s *Supervisor) Status() MonitorStatus {
	return MonitorStatus{
		Monitor: s.monitor,
		State:   s.State(),
		Cursor:  s.cursor.Current(),
		Stats:   s.engine.Stats().Snapshot(false),
	}
}

func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.log.WithField("state", st).Debug("Supervisor state changed")
	}
	metrics.SetState(s.monitor, string(st), allStates)
}

// Run connects, then polls until ctx is cancelled. Only a failed initial connection is
// returned as an error; every later failure leads to a reconnect.
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(StateConnecting)
	if err := s.source.Connect(ctx); err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("initial connection to change source failed: %w", err)
	}
	defer s.source.Close()

	s.cursor.Load(ctx)
	s.log.WithFields(logrus.Fields{"cursor": s.cursor.Current(), "poll_interval": s.pollInterval.String()}).Info("Monitoring for new documents")

	for {
		if ctx.Err() != nil {
			s.setState(StateStopped)
			s.log.Info("Monitor stopped")
			return nil
		}

		s.setState(StateMonitoring)
		if err := s.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.reconnect(ctx, err)
			continue
		}

		s.setState(StateMonitoring)
		_ = s.sleep(ctx, s.pollInterval)
	}
}

// PollOnce queries the source from the current cursor, dispatches what it returned and
// advances the cursor. Query-class errors are logged and count as an empty batch; other
// source errors are returned for the caller to reconnect.
func (s *Supervisor) PollOnce(ctx context.Context) error {
	cursor := s.cursor.Current()
	records, err := s.source.ChangedSince(ctx, cursor)
	if err != nil {
		if errors.Is(err, document.ErrMalformedQuery) {
			metrics.PollErrorsTotal.WithLabelValues(s.monitor, "query").Inc()
			s.log.WithError(err).Error("Change query failed, treating batch as empty")
			return nil
		}
		metrics.PollErrorsTotal.WithLabelValues(s.monitor, "connectivity").Inc()
		return err
	}

	fresh := records[:0:0]
	for _, rec := range records {
		if !rec.ChangedAt.After(cursor) {
			s.log.WithFields(logrus.Fields{"document": rec.Identity, "changed_at": rec.ChangedAt}).Warn("Source returned a document at or before the cursor, ignoring it")
			continue
		}
		fresh = append(fresh, rec)
	}
	if len(fresh) == 0 {
		s.log.Debug("No new documents")
		return nil
	}
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].ChangedAt.Before(fresh[j].ChangedAt) })

	s.setState(StateProcessingBatch)
	s.log.WithField("count", len(fresh)).Info("Processing new documents")
	res := s.engine.ProcessBatch(ctx, fresh)

	if !res.Advance.IsZero() {
		s.cursor.Advance(ctx, res.Advance)
	}
	s.log.WithFields(logrus.Fields{
		"batch_id":    res.BatchID,
		"sent":        res.Sent,
		"skipped":     res.Skipped,
		"failed":      res.Failed,
		"duplicates":  res.Duplicates,
		"attempted":   res.Attempted,
		"interrupted": res.Interrupted,
		"cursor":      s.cursor.Current(),
	}).Info("Batch complete")
	return nil
}

// reconnect reopens the source until it succeeds or ctx is cancelled.
func (s *Supervisor) reconnect(ctx context.Context, cause error) {
	s.setState(StateReconnecting)
	s.log.WithError(cause).Warn("Change source failed, reconnecting")
	s.alerter.Alert(ctx, fmt.Sprintf("%s monitor lost its database connection: %v", s.monitor, cause))

	for attempt := 1; ; attempt++ {
		_ = s.source.Close()
		err := s.source.Connect(ctx)
		if err == nil {
			s.log.WithField("attempt", attempt).Info("Reconnected to change source")
			if attempt > 1 {
				s.alerter.Alert(ctx, fmt.Sprintf("%s monitor reconnected after %d attempts", s.monitor, attempt))
			}
			return
		}
		s.log.WithError(err).WithField("attempt", attempt).Error("Reconnect failed")
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return
		}
	}
}
