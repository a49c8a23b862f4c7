package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"document_notifier/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DigestScheduler periodically reports the outcome counters of every monitor and starts a
// new counting window.
type DigestScheduler struct {
	cronEngine *cron.Cron
	cronSpec   string
	stats      []*app.Stats
	alerter    app.Alerter
	logger     *logrus.Entry
}

func NewDigestScheduler(cronSpec string, stats []*app.Stats, alerter app.Alerter, logger *logrus.Entry) *DigestScheduler {
	if alerter == nil {
		alerter = app.NopAlerter{}
	}
	return &DigestScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		cronSpec:   cronSpec,
		stats:      stats,
		alerter:    alerter,
		logger:     logger.WithField("component", "digest_scheduler"),
	}
}

// Start registers the digest job and starts the cron engine. An invalid spec is an error.
func (s *DigestScheduler) Start() error {
	s.logger.WithField("cron_spec", s.cronSpec).Info("Starting digest scheduler")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for outcome digest")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.RunDigest(ctx)
	})
	if err != nil {
		return fmt.Errorf("could not add digest cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	return nil
}

// RunDigest snapshots and resets every counter, then logs and alerts the summary.
func (s *DigestScheduler) RunDigest(ctx context.Context) string {
	lines := make([]string, 0, len(s.stats)+1)
	lines = append(lines, "Notification digest")
	for _, st := range s.stats {
		snap := st.Snapshot(true)
		s.logger.WithFields(logrus.Fields{
			"monitor": snap.Monitor,
			"sent":    snap.Sent,
			"skipped": snap.Skipped,
			"failed":  snap.Failed,
			"since":   snap.Since,
		}).Info("Outcome digest")
		lines = append(lines, snap.String())
	}
	text := strings.Join(lines, "\n")
	if r, ok := s.alerter.(app.Reporter); ok {
		r.Report(ctx, text)
	} else {
		s.alerter.Alert(ctx, text)
	}
	return text
}

func (s *DigestScheduler) Stop() {
	s.logger.Info("Stopping digest scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Digest scheduler stopped")
}
