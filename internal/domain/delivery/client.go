// internal/domain/delivery/client.go
package delivery

import (
	"context"
	"errors"

	"document_notifier/internal/domain/document"
)

// ErrPermanent marks provider rejections that will not succeed on retry.
var ErrPermanent = errors.New("permanent delivery failure")

// Message is a fully rendered notification ready for the provider.
type Message struct {
	From    string
	To      []string
	CC      []string
	Subject string
	HTML    string
	// IdempotencyKey lets the provider drop duplicate submissions of the same document.
	IdempotencyKey string
}

// Client hands a message to the delivery provider.
type Client interface {
	Send(ctx context.Context, msg Message) (providerID string, err error)
}

// Outcome is the per-record result reported by the dispatch engine.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeSkippedNoContact
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeSkippedNoContact:
		return "skipped_no_contact"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Builder renders a record with resolved recipients into a message.
type Builder interface {
	Build(rec *document.ChangeRecord) (Message, error)
}
