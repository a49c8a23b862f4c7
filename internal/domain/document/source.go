package document

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedQuery marks source errors caused by the query itself (bad column, bad
// syntax) rather than by connectivity. Reconnecting does not fix these.
var ErrMalformedQuery = errors.New("malformed change query")

// ErrNotFound is returned by lookups for a document number that does not exist.
var ErrNotFound = errors.New("document not found")

// Source is the read-only change feed for one document kind.
type Source interface {
	// Connect establishes (or re-establishes) the underlying connection.
	Connect(ctx context.Context) error
	Close() error

	// ChangedSince returns all qualifying documents whose change timestamp is strictly
	// greater than cursor, ascending by change timestamp.
	ChangedSince(ctx context.Context, cursor time.Time) ([]*ChangeRecord, error)

	// ByNumbers loads specific documents regardless of their change timestamp.
	ByNumbers(ctx context.Context, numbers []string) ([]*ChangeRecord, error)

	// MaxChangedOn returns the greatest change timestamp among documents dated on day.
	// ok is false when there are none.
	MaxChangedOn(ctx context.Context, day time.Time) (ts time.Time, ok bool, err error)
}
