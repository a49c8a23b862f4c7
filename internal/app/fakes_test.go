package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"document_notifier/internal/domain/contact"
	"document_notifier/internal/domain/delivery"
	"document_notifier/internal/domain/document"

	"github.com/sirupsen/logrus"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func invoice(id string, at time.Time, addr string) *document.ChangeRecord {
	return &document.ChangeRecord{
		Kind:           document.KindInvoice,
		Identity:       id,
		ChangedAt:      at,
		PartyID:        "C-" + id,
		PartyName:      "Customer " + id,
		ContactAddress: addr,
	}
}

// fakeProvider is an in-memory contact.Provider.
type fakeProvider struct {
	entries map[string]contact.Entry
	global  []string
}

func (p *fakeProvider) Lookup(_ document.Kind, partyID string) (contact.Entry, bool) {
	e, ok := p.entries[partyID]
	return e, ok
}

func (p *fakeProvider) GlobalCC(document.Kind) []string { return p.global }

// fakeBuilder renders a minimal message; mutate lets a test tamper with the result.
type fakeBuilder struct {
	mutate func(*delivery.Message)
	err    error
}

func (b *fakeBuilder) Build(rec *document.ChangeRecord) (delivery.Message, error) {
	if b.err != nil {
		return delivery.Message{}, b.err
	}
	msg := delivery.Message{
		From:           "Acme <billing@acme.com>",
		To:             rec.ResolvedTo,
		CC:             rec.ResolvedCC,
		Subject:        fmt.Sprintf("%s #%s from Acme", rec.Kind.Title(), rec.Identity),
		HTML:           "<p>" + rec.Identity + "</p>",
		IdempotencyKey: "key-" + rec.Identity,
	}
	if b.mutate != nil {
		b.mutate(&msg)
	}
	return msg, nil
}

// fakeClient fails with errs in order, then succeeds.
type fakeClient struct {
	mu    sync.Mutex
	errs  []error
	calls int
	sent  []delivery.Message
}

func (c *fakeClient) Send(_ context.Context, msg delivery.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return "", err
		}
	}
	c.sent = append(c.sent, msg)
	return fmt.Sprintf("msg-%d", c.calls), nil
}

func (c *fakeClient) sentSubjects() []string {
	out := make([]string, 0, len(c.sent))
	for _, m := range c.sent {
		out = append(out, m.Subject)
	}
	return out
}

// memStore is an in-memory checkpoint.Store.
type memStore struct {
	ts      time.Time
	found   bool
	loadErr error
	saveErr error
	saves   []time.Time
}

func (s *memStore) Load(context.Context) (time.Time, bool, error) {
	return s.ts, s.found, s.loadErr
}

func (s *memStore) Save(_ context.Context, ts time.Time) error {
	s.saves = append(s.saves, ts)
	if s.saveErr != nil {
		return s.saveErr
	}
	s.ts, s.found = ts, true
	return nil
}

// memProcessed is an in-memory checkpoint.ProcessedSet.
type memProcessed struct {
	ids    map[string]bool
	addErr error
}

func newMemProcessed(ids ...string) *memProcessed {
	p := &memProcessed{ids: map[string]bool{}}
	for _, id := range ids {
		p.ids[id] = true
	}
	return p
}

func (p *memProcessed) Contains(_ context.Context, id string) (bool, error) { return p.ids[id], nil }

func (p *memProcessed) Add(_ context.Context, id string) error {
	p.ids[id] = true
	return p.addErr
}

func (p *memProcessed) Len(context.Context) (int, error) { return len(p.ids), nil }

// fakeSource serves records changed after the cursor. ignoreCursor makes it return
// everything, like a source with a broken filter.
type fakeSource struct {
	records      []*document.ChangeRecord
	ignoreCursor bool
	connectErrs  []error
	queryErrs    []error
	connects     int
	closes       int
	queries      []time.Time
}

func (s *fakeSource) Connect(context.Context) error {
	s.connects++
	if len(s.connectErrs) > 0 {
		err := s.connectErrs[0]
		s.connectErrs = s.connectErrs[1:]
		return err
	}
	return nil
}

func (s *fakeSource) Close() error {
	s.closes++
	return nil
}

func (s *fakeSource) ChangedSince(_ context.Context, cursor time.Time) ([]*document.ChangeRecord, error) {
	s.queries = append(s.queries, cursor)
	if len(s.queryErrs) > 0 {
		err := s.queryErrs[0]
		s.queryErrs = s.queryErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	var out []*document.ChangeRecord
	for _, r := range s.records {
		if s.ignoreCursor || r.ChangedAt.After(cursor) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangedAt.Before(out[j].ChangedAt) })
	return out, nil
}

func (s *fakeSource) ByNumbers(_ context.Context, numbers []string) ([]*document.ChangeRecord, error) {
	var out []*document.ChangeRecord
	for _, n := range numbers {
		for _, r := range s.records {
			if r.Identity == n {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *fakeSource) MaxChangedOn(_ context.Context, day time.Time) (time.Time, bool, error) {
	var latest time.Time
	for _, r := range s.records {
		if r.ChangedAt.Format("2006-01-02") == day.Format("2006-01-02") && r.ChangedAt.After(latest) {
			latest = r.ChangedAt
		}
	}
	return latest, !latest.IsZero(), nil
}

// sleepRecorder records every wait. onSleep runs after recording with the 1-based call
// number; returning true makes that wait fail as if ctx were cancelled.
type sleepRecorder struct {
	waits   []time.Duration
	onSleep func(n int, d time.Duration) bool
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	if s.onSleep != nil && s.onSleep(len(s.waits), d) {
		return context.Canceled
	}
	return ctx.Err()
}

// alertRecorder collects alerts.
type alertRecorder struct {
	texts []string
}

func (a *alertRecorder) Alert(_ context.Context, text string) { a.texts = append(a.texts, text) }

func (a *alertRecorder) contains(sub string) bool {
	for _, t := range a.texts {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}
