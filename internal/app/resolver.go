package app

import (
	"document_notifier/internal/domain/contact"
	"document_notifier/internal/domain/document"
)

// ContactResolver computes the final recipients of a record from, in priority order, the
// record's own address, the per-party override and the global CC lists.
type ContactResolver struct {
	provider contact.Provider
	staticCC map[document.Kind][]string
}

// NewContactResolver builds a resolver. staticCC holds the CC lists fixed in the
// environment; they are applied ahead of the editable global CC.
func NewContactResolver(provider contact.Provider, staticCC map[document.Kind][]string) *ContactResolver {
	return &ContactResolver{provider: provider, staticCC: staticCC}
}

func (r *ContactResolver) Resolve(rec *document.ChangeRecord) contact.Recipients {
	to := contact.SplitAddresses(rec.ContactAddress)
	var cc []string

	if entry, ok := r.provider.Lookup(rec.Kind, rec.PartyID); ok {
		switch {
		case entry.Suppressed:
			to = nil
		case len(entry.To) > 0:
			to = append([]string(nil), entry.To...)
		}
		cc = append(cc, entry.CC...)
	}

	to = contact.MergeAddresses(to, nil)
	cc = contact.MergeAddresses(cc, nil)

	for _, global := range [][]string{r.staticCC[rec.Kind], r.provider.GlobalCC(rec.Kind)} {
		for _, addr := range global {
			if contact.ContainsAddress(to, addr) || contact.ContainsAddress(cc, addr) {
				continue
			}
			cc = append(cc, addr)
		}
	}

	return contact.Recipients{To: to, CC: cc}
}
