package document

import "context"

// Party is a customer or vendor as known to the source system.
type Party struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"source_email"`
}

// PartySearcher finds parties by id or name fragment. Used by the contact editor.
type PartySearcher interface {
	SearchParties(ctx context.Context, kind Kind, query string) ([]Party, error)
}
