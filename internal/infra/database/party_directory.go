package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"document_notifier/internal/domain/document"
)

const partySearchLimit = 50

const customerSearch = `
SELECT btrim(m.custnmbr), btrim(m.custname),
       COALESCE(NULLIF(btrim(inet.emailtoaddress), ''), btrim(inet.inet1), '')
FROM rm00101 m
LEFT JOIN sy01200 inet ON inet.master_type = 'CUS'
    AND inet.master_id = m.custnmbr
    AND inet.adrscode = m.adrscode
WHERE m.custnmbr ILIKE $1 OR m.custname ILIKE $1
ORDER BY m.custnmbr
LIMIT $2`

const vendorSearch = `
SELECT btrim(m.vendorid), btrim(m.vendname),
       COALESCE(NULLIF(btrim(inet.emailtoaddress), ''), btrim(inet.inet1), '')
FROM pm00200 m
LEFT JOIN sy01200 inet ON inet.master_type = 'VEN'
    AND inet.master_id = m.vendorid
    AND inet.adrscode = m.vaddcdpr
WHERE m.vendorid ILIKE $1 OR m.vendname ILIKE $1
ORDER BY m.vendorid
LIMIT $2`

// PartyDirectory implements document.PartySearcher over the customer and vendor masters.
type PartyDirectory struct {
	db *sql.DB
}

func NewPartyDirectory(db *sql.DB) *PartyDirectory {
	return &PartyDirectory{db: db}
}

func (d *PartyDirectory) SearchParties(ctx context.Context, kind document.Kind, query string) ([]document.Party, error) {
	var q string
	switch kind {
	case document.KindInvoice:
		q = customerSearch
	case document.KindPurchaseOrder:
		q = vendorSearch
	default:
		return nil, fmt.Errorf("no party directory for document kind %q", kind)
	}

	rows, err := d.db.QueryContext(ctx, q, likePattern(query), partySearchLimit)
	if err != nil {
		return nil, classify(fmt.Errorf("error searching parties: %w", err))
	}
	defer rows.Close()

	parties := []document.Party{}
	for rows.Next() {
		var p document.Party
		if err := rows.Scan(&p.ID, &p.Name, &p.Address); err != nil {
			return nil, fmt.Errorf("error scanning party: %w", err)
		}
		parties = append(parties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parties: %w", err)
	}
	return parties, nil
}

// likePattern wraps term for a contains match, escaping LIKE wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(term)) + "%"
}
