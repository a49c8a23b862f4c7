package app

import (
	"context"
	"time"
)

// ThrottleConfig paces sends inside one batch.
type ThrottleConfig struct {
	Delay      time.Duration // between consecutive sends
	BatchSize  int           // sends before a long pause; <= 0 disables the pause
	BatchPause time.Duration
}

// Throttle counts successful sends of one batch. Create a new one per batch.
type Throttle struct {
	cfg   ThrottleConfig
	sleep Sleeper
	sent  int
}

func NewThrottle(cfg ThrottleConfig, sleep Sleeper) *Throttle {
	return &Throttle{cfg: cfg, sleep: sleep}
}

// AfterSend is called after a successful send that is not the last record of the batch.
// Every BatchSize-th call waits BatchPause and restarts the count; the others wait Delay.
func (t *Throttle) AfterSend(ctx context.Context) error {
	t.sent++
	if t.cfg.BatchSize > 0 && t.sent >= t.cfg.BatchSize {
		t.sent = 0
		return t.sleep(ctx, t.cfg.BatchPause)
	}
	return t.sleep(ctx, t.cfg.Delay)
}
