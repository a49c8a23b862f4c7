// internal/domain/checkpoint/store.go
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ErrCorrupt is returned by Store.Load when a persisted cursor exists but cannot be parsed.
var ErrCorrupt = errors.New("checkpoint corrupt")

// Store persists the single cursor value of one monitor.
type Store interface {
	// Load returns the persisted cursor. found is false when nothing was ever saved.
	Load(ctx context.Context) (cursor time.Time, found bool, err error)
	Save(ctx context.Context, cursor time.Time) error
}

// ProcessedSet is the append-only set of document identities already notified.
type ProcessedSet interface {
	Contains(ctx context.Context, identity string) (bool, error)
	Add(ctx context.Context, identity string) error
	Len(ctx context.Context) (int, error)
}
