package app

import (
	"context"
	"errors"
	"time"

	"document_notifier/internal/domain/checkpoint"
	"document_notifier/internal/domain/delivery"
	"document_notifier/internal/domain/document"
	"document_notifier/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryBase   = 2 * time.Second
)

// EngineConfig parameterizes one monitor's dispatch engine.
type EngineConfig struct {
	Monitor     string
	DryRun      bool
	MaxAttempts int           // total attempts per message
	RetryBase   time.Duration // first backoff; doubles per retry
	Throttle    ThrottleConfig
}

// Engine sends the records of a batch one at a time: dedup check, contact resolution,
// safety guard, send with retry, throttle.
type Engine struct {
	cfg       EngineConfig
	resolver  *ContactResolver
	guard     *SafetyGuard
	builder   delivery.Builder
	client    delivery.Client
	processed checkpoint.ProcessedSet // nil when the monitor does not dedup
	stats     *Stats
	alerter   Alerter
	sleep     Sleeper
	log       *logrus.Entry
}

// EngineDeps are the collaborators of an Engine. Processed, Stats, Alerter and Sleep are
// optional.
type EngineDeps struct {
	Resolver  *ContactResolver
	Guard     *SafetyGuard
	Builder   delivery.Builder
	Client    delivery.Client
	Processed checkpoint.ProcessedSet
	Stats     *Stats
	Alerter   Alerter
	Sleep     Sleeper
	Log       *logrus.Entry
}

func NewEngine(cfg EngineConfig, deps EngineDeps) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	e := &Engine{
		cfg:       cfg,
		resolver:  deps.Resolver,
		guard:     deps.Guard,
		builder:   deps.Builder,
		client:    deps.Client,
		processed: deps.Processed,
		stats:     deps.Stats,
		alerter:   deps.Alerter,
		sleep:     deps.Sleep,
		log:       deps.Log,
	}
	if e.guard == nil {
		e.guard = NewSafetyGuard(false, "")
	}
	if e.stats == nil {
		e.stats = NewStats(cfg.Monitor)
	}
	if e.alerter == nil {
		e.alerter = NopAlerter{}
	}
	if e.sleep == nil {
		e.sleep = SleepContext
	}
	if e.log == nil {
		e.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return e
}

// Stats returns the outcome counters the engine records into.
func (e *Engine) Stats() *Stats { return e.stats }

// BatchResult summarizes one ProcessBatch call.
type BatchResult struct {
	BatchID    string
	Sent       int
	Skipped    int
	Failed     int
	Duplicates int
	// Attempted is the length of the prefix of the batch that was fully handled.
	Attempted int
	// Advance is the greatest change timestamp inside that prefix; zero when empty.
	Advance time.Time
	// Interrupted is set when shutdown cut the batch short during a wait.
	Interrupted bool
}

// ProcessBatch handles records in order. It only stops early when ctx is cancelled
// during a backoff or throttle wait.
func (e *Engine) ProcessBatch(ctx context.Context, records []*document.ChangeRecord) BatchResult {
	return e.run(ctx, records, false)
}

// ForceSend sends records regardless of the processed set, with fresh idempotency keys
// so the provider does not drop a deliberate resend.
func (e *Engine) ForceSend(ctx context.Context, records []*document.ChangeRecord) BatchResult {
	return e.run(ctx, records, true)
}

func (e *Engine) run(ctx context.Context, records []*document.ChangeRecord, forced bool) BatchResult {
	res := BatchResult{BatchID: uuid.NewString()}
	log := e.log.WithField("batch_id", res.BatchID)
	throttle := NewThrottle(e.cfg.Throttle, e.sleep)

	markAttempted := func(rec *document.ChangeRecord) {
		res.Attempted++
		if rec.ChangedAt.After(res.Advance) {
			res.Advance = rec.ChangedAt
		}
	}

	// Duplicates are identified up front so the last real record is known; no throttle
	// wait follows it.
	dup := make([]bool, len(records))
	inBatch := make(map[string]struct{}, len(records))
	lastLive := -1
	for i, rec := range records {
		if !forced && e.processed != nil {
			seen, err := e.processed.Contains(ctx, rec.Identity)
			if err != nil {
				log.WithError(err).WithField("document", rec.Identity).Warn("Processed set lookup failed, treating document as new")
			}
			_, repeated := inBatch[rec.Identity]
			inBatch[rec.Identity] = struct{}{}
			dup[i] = seen || repeated
		}
		if !dup[i] {
			lastLive = i
		}
	}

	for i, rec := range records {
		rlog := log.WithFields(logrus.Fields{"document": rec.Identity, "party": rec.PartyID})

		if dup[i] {
			rlog.Debug("Already notified, skipping")
			res.Duplicates++
			markAttempted(rec)
			continue
		}

		outcome, err := e.dispatch(ctx, rec, forced, rlog)
		if err != nil {
			rlog.Warn("Shutdown requested during retry backoff, leaving document for the next run")
			res.Interrupted = true
			break
		}

		if !forced && e.processed != nil {
			if err := e.processed.Add(context.WithoutCancel(ctx), rec.Identity); err != nil {
				rlog.WithError(err).Error("Failed to persist processed identity, continuing in memory")
			}
		}
		e.stats.Record(outcome)
		switch outcome {
		case delivery.OutcomeSent:
			res.Sent++
		case delivery.OutcomeSkippedNoContact:
			res.Skipped++
		default:
			res.Failed++
		}
		markAttempted(rec)

		if outcome == delivery.OutcomeSent && !e.cfg.DryRun && i < lastLive {
			if err := throttle.AfterSend(ctx); err != nil {
				log.Warn("Shutdown requested during throttle wait, stopping batch")
				res.Interrupted = true
				break
			}
		}
	}
	return res
}

// dispatch runs the per-record pipeline. The error is non-nil only when ctx was cancelled
// during a backoff wait; the record then counts as not attempted.
func (e *Engine) dispatch(ctx context.Context, rec *document.ChangeRecord, forced bool, log *logrus.Entry) (delivery.Outcome, error) {
	recipients := e.resolver.Resolve(rec)
	if recipients.Empty() {
		log.Warn("No contact address, skipping")
		return delivery.OutcomeSkippedNoContact, nil
	}

	recipients, prefix := e.guard.Apply(recipients)
	rec.ResolvedTo, rec.ResolvedCC = recipients.To, recipients.CC

	msg, err := e.builder.Build(rec)
	if err != nil {
		log.WithError(err).Error("Failed to build notification")
		return delivery.OutcomeFailed, nil
	}
	msg.Subject = prefix + msg.Subject
	if forced {
		msg.IdempotencyKey = uuid.NewString()
	}

	if err := e.guard.Check(msg); err != nil {
		log.WithError(err).Error("Send aborted by safety guard")
		e.alerter.Alert(ctx, "Safety guard blocked "+rec.Kind.Title()+" #"+rec.Identity+": "+err.Error())
		return delivery.OutcomeFailed, nil
	}

	if e.cfg.DryRun {
		log.WithFields(logrus.Fields{"to": msg.To, "cc": msg.CC, "subject": msg.Subject}).Info("DRY RUN: would send notification")
		return delivery.OutcomeSent, nil
	}

	return e.sendWithRetry(ctx, msg, log)
}

func (e *Engine) sendWithRetry(ctx context.Context, msg delivery.Message, log *logrus.Entry) (delivery.Outcome, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		// An in-flight request is never cancelled; only the waits between attempts are.
		providerID, err := e.client.Send(context.WithoutCancel(ctx), msg)
		if err == nil {
			log.WithFields(logrus.Fields{"attempt": attempt, "provider_id": providerID, "to": msg.To}).Info("Notification sent")
			return delivery.OutcomeSent, nil
		}
		lastErr = err
		if errors.Is(err, delivery.ErrPermanent) {
			log.WithError(err).WithField("attempt", attempt).Error("Provider rejected notification")
			break
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}

		wait := e.cfg.RetryBase << (attempt - 1)
		log.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "retry_in": wait.String()}).Warn("Send failed, retrying")
		metrics.DeliveryRetriesTotal.WithLabelValues(e.cfg.Monitor).Inc()
		if err := e.sleep(ctx, wait); err != nil {
			return delivery.OutcomeFailed, err
		}
	}

	log.WithError(lastErr).Error("Giving up on notification")
	e.alerter.Alert(ctx, "Delivery failed for \""+msg.Subject+"\": "+lastErr.Error())
	return delivery.OutcomeFailed, nil
}
