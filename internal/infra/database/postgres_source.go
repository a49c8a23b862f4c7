package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"document_notifier/internal/domain/document"

	"github.com/lib/pq"
)

// PostgresSource implements document.Source for one document kind.
type PostgresSource struct {
	dsn     string
	kind    document.Kind
	queries kindQueries

	mu sync.Mutex
	db *sql.DB
}

func NewPostgresSource(dsn string, kind document.Kind) (*PostgresSource, error) {
	q, err := queriesFor(kind)
	if err != nil {
		return nil, err
	}
	return &PostgresSource{dsn: dsn, kind: kind, queries: q}, nil
}

// Connect opens a fresh pool, replacing (and closing) any previous one.
func (s *PostgresSource) Connect(ctx context.Context) error {
	db, err := NewPostgresConnection(ctx, s.dsn, MonitorPool)
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (s *PostgresSource) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

func (s *PostgresSource) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("source is not connected")
	}
	return s.db, nil
}

func (s *PostgresSource) ChangedSince(ctx context.Context, cursor time.Time) ([]*document.ChangeRecord, error) {
	return s.fetch(ctx, s.queries.changedSince(), cursor.UTC())
}

func (s *PostgresSource) ByNumbers(ctx context.Context, numbers []string) ([]*document.ChangeRecord, error) {
	cleaned := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	return s.fetch(ctx, s.queries.byNumbers(s.kind), pq.Array(cleaned))
}

func (s *PostgresSource) MaxChangedOn(ctx context.Context, day time.Time) (time.Time, bool, error) {
	db, err := s.conn()
	if err != nil {
		return time.Time{}, false, err
	}
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var latest pq.NullTime
	if err := db.QueryRowContext(ctx, s.queries.maxOn, start, start.AddDate(0, 0, 1)).Scan(&latest); err != nil {
		return time.Time{}, false, classify(fmt.Errorf("error querying max change time: %w", err))
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time.UTC(), true, nil
}

func (s *PostgresSource) fetch(ctx context.Context, query string, arg any) ([]*document.ChangeRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, classify(fmt.Errorf("error querying %s headers: %w", s.kind, err))
	}
	defer rows.Close()

	var (
		records []*document.ChangeRecord
		numbers []string
	)
	for rows.Next() {
		r := &document.ChangeRecord{Kind: s.kind}
		var docDate pq.NullTime
		if err := rows.Scan(
			&r.Identity, &docDate, &r.Amount, &r.Subtotal, &r.Freight, &r.Tax, &r.Misc,
			&r.Discount, &r.PartyID, &r.PartyName, &r.CustomerPONumber, &r.ChangedAt,
			&r.ContactAddress,
		); err != nil {
			return nil, classify(fmt.Errorf("error scanning %s header: %w", s.kind, err))
		}
		if docDate.Valid {
			r.DocumentDate = docDate.Time.UTC()
		}
		r.ChangedAt = r.ChangedAt.UTC()
		records = append(records, r)
		numbers = append(numbers, r.Identity)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("error iterating %s headers: %w", s.kind, err))
	}
	if len(records) == 0 {
		return nil, nil
	}

	lines, err := s.loadLines(ctx, db, numbers)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		r.Lines = lines[r.Identity]
	}
	return records, nil
}

// loadLines fetches the lines of every header in one round trip.
func (s *PostgresSource) loadLines(ctx context.Context, db *sql.DB, numbers []string) (map[string][]document.LineItem, error) {
	rows, err := db.QueryContext(ctx, s.queries.lines, pq.Array(numbers))
	if err != nil {
		return nil, classify(fmt.Errorf("error querying %s lines: %w", s.kind, err))
	}
	defer rows.Close()

	out := make(map[string][]document.LineItem, len(numbers))
	for rows.Next() {
		var number string
		var li document.LineItem
		if err := rows.Scan(&number, &li.ItemNumber, &li.Description, &li.Quantity, &li.UnitPrice, &li.ExtendedPrice, &li.UnitOfMeasure); err != nil {
			return nil, classify(fmt.Errorf("error scanning %s line: %w", s.kind, err))
		}
		out[number] = append(out[number], li)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("error iterating %s lines: %w", s.kind, err))
	}
	return out, nil
}

// classify marks SQLSTATE class 42 (syntax error or access rule violation) as a query
// error; reconnecting cannot fix those.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "42" {
		return fmt.Errorf("%w: %w", document.ErrMalformedQuery, err)
	}
	return err
}
