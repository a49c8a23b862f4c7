package app

import (
	"fmt"
	"sync"
	"time"

	"document_notifier/internal/domain/delivery"
	"document_notifier/internal/infra/metrics"
)

// Stats counts dispatch outcomes of one monitor between digests.
type Stats struct {
	monitor string
	now     func() time.Time

	mu     sync.Mutex
	counts map[delivery.Outcome]int
	since  time.Time
}

// StatsSnapshot is a copy of the counters at one point in time.
type StatsSnapshot struct {
	Monitor string
	Sent    int
	Skipped int
	Failed  int
	Since   time.Time
	Until   time.Time
}

func NewStats(monitor string) *Stats {
	s := &Stats{monitor: monitor, now: time.Now, counts: map[delivery.Outcome]int{}}
	s.since = s.now().UTC()
	return s
}

func (s *Stats) Record(o delivery.Outcome) {
	metrics.NotificationsTotal.WithLabelValues(s.monitor, o.String()).Inc()
	s.mu.Lock()
	s.counts[o]++
	s.mu.Unlock()
}

// Snapshot returns the current counters; with reset the counting window restarts.
func (s *Stats) Snapshot(reset bool) StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	snap := StatsSnapshot{
		Monitor: s.monitor,
		Sent:    s.counts[delivery.OutcomeSent],
		Skipped: s.counts[delivery.OutcomeSkippedNoContact],
		Failed:  s.counts[delivery.OutcomeFailed],
		Since:   s.since,
		Until:   now,
	}
	if reset {
		s.counts = map[delivery.Outcome]int{}
		s.since = now
	}
	return snap
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("%s: %d sent, %d skipped (no contact), %d failed since %s",
		s.Monitor, s.Sent, s.Skipped, s.Failed, s.Since.Format("2006-01-02 15:04 MST"))
}
