package contact

import "document_notifier/internal/domain/document"

// GlobalCC holds the default CC lists per notification category, as edited from the
// admin API. It is stored as a flat JSON object.
type GlobalCC struct {
	InvoiceCC string `json:"invoice_cc"`
	POCC      string `json:"po_cc"`
}

// For returns the parsed CC list for kind.
func (g GlobalCC) For(kind document.Kind) []string {
	switch kind {
	case document.KindInvoice:
		return SplitAddresses(g.InvoiceCC)
	case document.KindPurchaseOrder:
		return SplitAddresses(g.POCC)
	default:
		return nil
	}
}

// With returns a copy of g with the raw value for kind replaced.
func (g GlobalCC) With(kind document.Kind, value string) GlobalCC {
	switch kind {
	case document.KindInvoice:
		g.InvoiceCC = value
	case document.KindPurchaseOrder:
		g.POCC = value
	}
	return g
}

// Recipients is the resolver's final answer for one record.
type Recipients struct {
	To []string
	CC []string
}

// Empty reports whether there is nobody to send to.
func (r Recipients) Empty() bool { return len(r.To) == 0 }
