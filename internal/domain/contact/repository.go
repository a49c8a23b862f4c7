package contact

import (
	"context"

	"document_notifier/internal/domain/document"
)

// Provider answers contact lookups for the dispatch path. Implementations keep the data in
// memory; lookups never touch the filesystem.
type Provider interface {
	Lookup(kind document.Kind, partyID string) (Entry, bool)
	GlobalCC(kind document.Kind) []string
}

// Repository reads and writes the contact mapping and global CC files.
type Repository interface {
	Mappings(ctx context.Context, kind document.Kind) (map[string]Entry, error)
	SaveMappings(ctx context.Context, kind document.Kind, mappings map[string]Entry) error
	GlobalConfig(ctx context.Context) (GlobalCC, error)
	SaveGlobalConfig(ctx context.Context, cfg GlobalCC) error
}
