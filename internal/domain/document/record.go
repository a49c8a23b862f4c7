// internal/domain/document/record.go
package document

import "time"

// Kind identifies which business document stream a monitor watches.
type Kind string

const (
	KindInvoice       Kind = "invoice"
	KindPurchaseOrder Kind = "purchase_order"
)

// ParseKind accepts the kind names used on the command line and in the admin API.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "invoice", "invoices":
		return KindInvoice, true
	case "purchase_order", "purchase-order", "purchase-orders", "po", "purchasing":
		return KindPurchaseOrder, true
	default:
		return "", false
	}
}

// Title is the human label used in subjects and logs.
func (k Kind) Title() string {
	switch k {
	case KindInvoice:
		return "Invoice"
	case KindPurchaseOrder:
		return "Purchase Order"
	default:
		return string(k)
	}
}

// LineItem is one row of a document body.
type LineItem struct {
	ItemNumber    string
	Description   string
	Quantity      float64
	UnitPrice     float64
	ExtendedPrice float64
	UnitOfMeasure string
}

// ChangeRecord is a snapshot of one document at the moment it was read from the source.
// Only Identity, ChangedAt, PartyID and ContactAddress matter to the dispatch engine;
// the rest is carried through to the notification builder untouched.
type ChangeRecord struct {
	Kind      Kind
	Identity  string    // document number, unique within the source
	ChangedAt time.Time // drives the cursor

	PartyID   string // customer or vendor id; key of the contact override mapping
	PartyName string
	// ContactAddress is the raw address list stored with the party; may be empty.
	ContactAddress string

	DocumentDate     time.Time
	Amount           float64
	Subtotal         float64
	Freight          float64
	Tax              float64
	Misc             float64
	Discount         float64
	CustomerPONumber string

	Lines []LineItem // attached after the header query

	// Resolved recipients, set by the contact resolver before rendering.
	ResolvedTo []string
	ResolvedCC []string
}
