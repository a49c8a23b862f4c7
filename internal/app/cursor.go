package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"document_notifier/internal/domain/checkpoint"
	"document_notifier/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// FutureReset selects where a cursor found more than a day in the future is moved to.
type FutureReset int

const (
	ResetToNow FutureReset = iota
	ResetToStartOfDay
)

const futureTolerance = 24 * time.Hour

// Cursor owns the watermark of one monitor. It only moves forward, except through Reset.
type Cursor struct {
	store   checkpoint.Store
	reset   FutureReset
	monitor string
	log     *logrus.Entry
	now     func() time.Time

	mu      sync.RWMutex
	current time.Time
}

func NewCursor(store checkpoint.Store, reset FutureReset, monitor string, log *logrus.Entry) *Cursor {
	return &Cursor{store: store, reset: reset, monitor: monitor, log: log, now: time.Now}
}

// Load reads the persisted cursor. A missing or unreadable value starts at the beginning of
// the current day. A value beyond now+1d is repaired and written back at once.
func (c *Cursor) Load(ctx context.Context) time.Time {
	now := c.now().UTC()
	ts, found, err := c.store.Load(ctx)
	switch {
	case err != nil:
		if errors.Is(err, checkpoint.ErrCorrupt) {
			c.log.WithError(err).Warn("Checkpoint is corrupt, starting from the beginning of today")
		} else {
			c.log.WithError(err).Error("Failed to read checkpoint, starting from the beginning of today")
		}
		ts = startOfDay(now)
	case !found:
		ts = startOfDay(now)
		c.log.WithField("cursor", ts).Info("No checkpoint yet, starting from the beginning of today")
	case ts.After(now.Add(futureTolerance)):
		repaired := now
		if c.reset == ResetToStartOfDay {
			repaired = startOfDay(now)
		}
		c.log.WithFields(logrus.Fields{"stored": ts, "repaired": repaired}).Warn("Checkpoint is in the future, resetting")
		if err := c.store.Save(ctx, repaired); err != nil {
			c.log.WithError(err).Error("Failed to persist repaired checkpoint")
		}
		ts = repaired
	default:
		c.log.WithField("cursor", ts).Info("Resuming from checkpoint")
	}
	c.set(ts)
	return ts
}

func (c *Cursor) Current() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Advance moves the cursor to ts if it is later and persists it. A failed write is logged
// and the in-memory value still advances. It reports whether the cursor moved.
func (c *Cursor) Advance(ctx context.Context, ts time.Time) bool {
	ts = ts.UTC()
	if !ts.After(c.Current()) {
		return false
	}
	c.set(ts)
	if err := c.store.Save(context.WithoutCancel(ctx), ts); err != nil {
		c.log.WithError(err).WithField("cursor", ts).Error("Failed to persist checkpoint, continuing in memory")
	}
	return true
}

// Reset is the operator override: it sets the cursor to ts in either direction.
func (c *Cursor) Reset(ctx context.Context, ts time.Time) error {
	ts = ts.UTC()
	if err := c.store.Save(ctx, ts); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"from": c.Current(), "to": ts}).Warn("Checkpoint reset by operator")
	c.set(ts)
	return nil
}

func (c *Cursor) set(ts time.Time) {
	c.mu.Lock()
	c.current = ts
	c.mu.Unlock()
	metrics.SetCursor(c.monitor, ts)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
