package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"document_notifier/internal/domain/checkpoint"
	"document_notifier/internal/domain/delivery"
	"document_notifier/internal/domain/document"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	engine  *Engine
	client  *fakeClient
	builder *fakeBuilder
	sleeper *sleepRecorder
	alerts  *alertRecorder
	stats   *Stats
}

type engineOption func(*EngineConfig, *EngineDeps)

func withDryRun() engineOption {
	return func(c *EngineConfig, _ *EngineDeps) { c.DryRun = true }
}

func withRedirect(to string) engineOption {
	return func(_ *EngineConfig, d *EngineDeps) { d.Guard = NewSafetyGuard(true, to) }
}

func withProcessed(p checkpoint.ProcessedSet) engineOption {
	return func(_ *EngineConfig, d *EngineDeps) { d.Processed = p }
}

func withThrottle(th ThrottleConfig) engineOption {
	return func(c *EngineConfig, _ *EngineDeps) { c.Throttle = th }
}

func newEngineFixture(client *fakeClient, opts ...engineOption) *engineFixture {
	f := &engineFixture{
		client:  client,
		builder: &fakeBuilder{},
		sleeper: &sleepRecorder{},
		alerts:  &alertRecorder{},
		stats:   NewStats("test"),
	}
	cfg := EngineConfig{
		Monitor:  "test",
		Throttle: ThrottleConfig{Delay: 25 * time.Second, BatchSize: 10, BatchPause: 2 * time.Minute},
	}
	deps := EngineDeps{
		Resolver: NewContactResolver(&fakeProvider{}, nil),
		Builder:  f.builder,
		Client:   client,
		Stats:    f.stats,
		Alerter:  f.alerts,
		Sleep:    f.sleeper.sleep,
		Log:      quietLog(),
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}
	f.engine = NewEngine(cfg, deps)
	return f
}

func TestEngine_BackoffSchedule(t *testing.T) {
	transient := errors.New("503 service unavailable")
	f := newEngineFixture(&fakeClient{errs: []error{transient, transient, transient}})

	res := f.engine.ProcessBatch(context.Background(), []*document.ChangeRecord{invoice("INV-1", t0, "a@x.com")})

	assert.Equal(t, 3, f.client.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, f.sleeper.waits)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, t0, res.Advance)
	assert.False(t, res.Interrupted)
	assert.True(t, f.alerts.contains("Invoice #INV-1"))
}

func TestEngine_RetrySucceeds(t *testing.T) {
	f := newEngineFixture(&fakeClient{errs: []error{errors.New("timeout")}})

	res := f.engine.ProcessBatch(context.Background(), []*document.ChangeRecord{invoice("INV-1", t0, "a@x.com")})

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 2, f.client.calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, f.sleeper.waits)
}

func TestEngine_PermanentErrorIsNotRetried(t *testing.T) {
	permanent := fmt.Errorf("%w: 422 invalid to", delivery.ErrPermanent)
	f := newEngineFixture(&fakeClient{errs: []error{permanent}})

	res := f.engine.ProcessBatch(context.Background(), []*document.ChangeRecord{invoice("INV-1", t0, "a@x.com")})

	assert.Equal(t, 1, f.client.calls)
	assert.Empty(t, f.sleeper.waits)
	assert.Equal(t, 1, res.Failed)
}

func TestEngine_BatchPause(t *testing.T) {
	f := newEngineFixture(&fakeClient{}, withThrottle(ThrottleConfig{Delay: 25 * time.Second, BatchSize: 2, BatchPause: 2 * time.Minute}))
	var records []*document.ChangeRecord
	for i := 1; i <= 5; i++ {
		records = append(records, invoice(fmt.Sprintf("INV-%d", i), t0.Add(time.Duration(i)*time.Second), "a@x.com"))
	}

	res := f.engine.ProcessBatch(context.Background(), records)

	assert.Equal(t, 5, res.Sent)
	assert.Equal(t, []time.Duration{25 * time.Second, 2 * time.Minute, 25 * time.Second, 2 * time.Minute}, f.sleeper.waits)
	assert.Equal(t, t0.Add(5*time.Second), res.Advance)
}

func TestEngine_NoWaitAfterSkipOrFailure(t *testing.T) {
	permanent := fmt.Errorf("%w: rejected", delivery.ErrPermanent)
	f := newEngineFixture(&fakeClient{errs: []error{nil, permanent}})
	records := []*document.ChangeRecord{
		invoice("INV-1", t0.Add(1*time.Second), ""),        // skipped
		invoice("INV-2", t0.Add(2*time.Second), "a@x.com"), // sent, wait
		invoice("INV-3", t0.Add(3*time.Second), "a@x.com"), // rejected, no wait
		invoice("INV-4", t0.Add(4*time.Second), "a@x.com"), // sent, last
	}

	res := f.engine.ProcessBatch(context.Background(), records)

	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []time.Duration{25 * time.Second}, f.sleeper.waits)

	snap := f.stats.Snapshot(false)
	assert.Equal(t, 2, snap.Sent)
	assert.Equal(t, 1, snap.Skipped)
	assert.Equal(t, 1, snap.Failed)
}

func TestEngine_DryRunNeverCallsProvider(t *testing.T) {
	f := newEngineFixture(&fakeClient{}, withDryRun())
	records := []*document.ChangeRecord{
		invoice("INV-1", t0.Add(time.Second), "a@x.com"),
		invoice("INV-2", t0.Add(2*time.Second), "b@x.com"),
	}

	res := f.engine.ProcessBatch(context.Background(), records)

	assert.Equal(t, 2, res.Sent)
	assert.Zero(t, f.client.calls)
	assert.Empty(t, f.sleeper.waits)
}

func TestEngine_RedirectMode(t *testing.T) {
	f := newEngineFixture(&fakeClient{}, withRedirect("qa@us.com"))

	res := f.engine.ProcessBatch(context.Background(), []*document.ChangeRecord{invoice("INV-1", t0, "real@customer.com")})

	require.Equal(t, 1, res.Sent)
	require.Len(t, f.client.sent, 1)
	msg := f.client.sent[0]
	assert.Equal(t, []string{"qa@us.com"}, msg.To)
	assert.Empty(t, msg.CC)
	assert.Equal(t, "[TEST - Originally for real@customer.com] Invoice #INV-1 from Acme", msg.Subject)
}

func TestEngine_GuardBlocksLeakedRecipients(t *testing.T) {
	f := newEngineFixture(&fakeClient{}, withRedirect("qa@us.com"))
	f.builder.mutate = func(m *delivery.Message) { m.To = []string{"real@customer.com"} }

	res := f.engine.ProcessBatch(context.Background(), []*document.ChangeRecord{invoice("INV-1", t0, "real@customer.com")})

	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, f.client.calls)
	assert.True(t, f.alerts.contains("Safety guard blocked"))
}

func TestEngine_BuildFailureIsAFailedOutcome(t *testing.T) {
	f := newEngineFixture(&fakeClient{})
	f.builder.err = errors.New("template broken")

	res := f.engine.ProcessBatch(context.Background(), []*document.ChangeRecord{invoice("INV-1", t0, "a@x.com")})
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, f.client.calls)
}

func TestEngine_ProcessedSet(t *testing.T) {
	processed := newMemProcessed("PO-1")
	f := newEngineFixture(&fakeClient{errs: []error{nil, fmt.Errorf("%w: bad", delivery.ErrPermanent)}}, withProcessed(processed))
	records := []*document.ChangeRecord{
		invoice("PO-1", t0.Add(1*time.Second), "a@x.com"), // already notified
		invoice("PO-2", t0.Add(2*time.Second), "a@x.com"), // sent
		invoice("PO-3", t0.Add(3*time.Second), ""),        // no contact
		invoice("PO-4", t0.Add(4*time.Second), "a@x.com"), // rejected
	}

	res := f.engine.ProcessBatch(context.Background(), records)

	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Attempted)
	assert.Equal(t, t0.Add(4*time.Second), res.Advance)
	for _, id := range []string{"PO-1", "PO-2", "PO-3", "PO-4"} {
		assert.True(t, processed.ids[id], id)
	}

	// A second pass over the same records sends nothing.
	again := f.engine.ProcessBatch(context.Background(), records)
	assert.Equal(t, 4, again.Duplicates)
	assert.Equal(t, 2, f.client.calls)
}

func TestEngine_NoWaitAfterLastRealRecordBeforeDuplicates(t *testing.T) {
	processed := newMemProcessed("INV-2")
	f := newEngineFixture(&fakeClient{}, withProcessed(processed))

	res := f.engine.ProcessBatch(context.Background(), []*document.ChangeRecord{
		invoice("INV-1", t0.Add(time.Second), "a@x.com"),
		invoice("INV-2", t0.Add(2*time.Second), "a@x.com"),
	})

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, t0.Add(2*time.Second), res.Advance)
	assert.Empty(t, f.sleeper.waits)
}

func TestEngine_BatchPauseIgnoresTrailingDuplicate(t *testing.T) {
	processed := newMemProcessed("DUP")
	f := newEngineFixture(&fakeClient{},
		withProcessed(processed),
		withThrottle(ThrottleConfig{Delay: time.Second, BatchSize: 2, BatchPause: time.Minute}))
	var records []*document.ChangeRecord
	for i, id := range []string{"A", "B", "C", "D", "E", "DUP"} {
		records = append(records, invoice(id, t0.Add(time.Duration(i+1)*time.Second), "a@x.com"))
	}

	res := f.engine.ProcessBatch(context.Background(), records)

	assert.Equal(t, 5, res.Sent)
	assert.Equal(t, 6, res.Attempted)
	assert.Equal(t, []time.Duration{time.Second, time.Minute, time.Second, time.Minute}, f.sleeper.waits)
}

func TestEngine_RepeatedIdentityInOneBatchIsSentOnce(t *testing.T) {
	f := newEngineFixture(&fakeClient{}, withProcessed(newMemProcessed()))

	res := f.engine.ProcessBatch(context.Background(), []*document.ChangeRecord{
		invoice("PO-1", t0.Add(time.Second), "a@x.com"),
		invoice("PO-1", t0.Add(2*time.Second), "a@x.com"),
	})

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, f.client.calls)
	assert.Empty(t, f.sleeper.waits)
}

func TestEngine_ProcessedSetWriteFailureIsNotFatal(t *testing.T) {
	processed := newMemProcessed()
	processed.addErr = errors.New("disk full")
	f := newEngineFixture(&fakeClient{}, withProcessed(processed))

	res := f.engine.ProcessBatch(context.Background(), []*document.ChangeRecord{invoice("PO-1", t0, "a@x.com")})
	assert.Equal(t, 1, res.Sent)
	assert.True(t, processed.ids["PO-1"])
}

func TestEngine_ShutdownDuringBackoffLeavesRecordUnattempted(t *testing.T) {
	f := newEngineFixture(&fakeClient{errs: []error{errors.New("timeout")}})
	f.sleeper.onSleep = func(int, time.Duration) bool { return true }
	records := []*document.ChangeRecord{
		invoice("INV-1", t0.Add(time.Second), "a@x.com"),
		invoice("INV-2", t0.Add(2*time.Second), "a@x.com"),
	}

	res := f.engine.ProcessBatch(context.Background(), records)

	assert.True(t, res.Interrupted)
	assert.Zero(t, res.Attempted)
	assert.True(t, res.Advance.IsZero())
	assert.Equal(t, 1, f.client.calls)
}

func TestEngine_ShutdownDuringThrottleKeepsPrefix(t *testing.T) {
	f := newEngineFixture(&fakeClient{})
	f.sleeper.onSleep = func(int, time.Duration) bool { return true }
	records := []*document.ChangeRecord{
		invoice("INV-1", t0.Add(time.Second), "a@x.com"),
		invoice("INV-2", t0.Add(2*time.Second), "a@x.com"),
	}

	res := f.engine.ProcessBatch(context.Background(), records)

	assert.True(t, res.Interrupted)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, t0.Add(time.Second), res.Advance)
	assert.Equal(t, []string{"Invoice #INV-1 from Acme"}, f.client.sentSubjects())
}

func TestEngine_ForceSendIgnoresProcessedSet(t *testing.T) {
	processed := newMemProcessed("INV-1")
	f := newEngineFixture(&fakeClient{}, withProcessed(processed))

	res := f.engine.ForceSend(context.Background(), []*document.ChangeRecord{invoice("INV-1", t0, "a@x.com")})

	assert.Equal(t, 1, res.Sent)
	require.Len(t, f.client.sent, 1)
	assert.NotEqual(t, "key-INV-1", f.client.sent[0].IdempotencyKey)
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(EngineConfig{Monitor: "x"}, EngineDeps{})
	assert.Equal(t, DefaultMaxAttempts, e.cfg.MaxAttempts)
	assert.Equal(t, DefaultRetryBase, e.cfg.RetryBase)
	assert.False(t, e.guard.Enabled())
	assert.NotNil(t, e.stats)
}
