package database

import (
	"fmt"

	"document_notifier/internal/domain/document"
)

// The source database is a Postgres replica of the ERP tables. Character columns are
// blank-padded there, so every key is btrim'd before it leaves the query. dex_row_ts is
// the row's last-write time in UTC.

// kindQueries holds the SQL for one document kind. Header queries take a single
// condition fragment whose only parameter is $1.
type kindQueries struct {
	header string
	lines  string
	maxOn  string
}

const invoiceHeader = `
SELECT btrim(h.sopnumbe),
       h.docdate,
       h.docamnt,
       h.subtotal,
       h.frtamnt,
       h.taxamnt,
       0::numeric,
       h.trdisamt,
       btrim(h.custnmbr),
       btrim(c.custname),
       btrim(h.cstponbr),
       h.dex_row_ts,
       COALESCE(NULLIF(btrim(inet.emailtoaddress), ''), btrim(inet.inet1), '')
FROM sop30200 h
JOIN rm00101 c ON h.custnmbr = c.custnmbr
LEFT JOIN sy01200 inet ON inet.master_type = 'CUS'
    AND inet.master_id = h.custnmbr
    AND inet.adrscode = c.adrscode
WHERE h.soptype = 3
  AND h.voidstts = 0
  AND %s
ORDER BY h.dex_row_ts ASC`

const invoiceLines = `
SELECT btrim(sopnumbe), btrim(itemnmbr), btrim(itemdesc), quantity, unitprce, xtndprce, btrim(uofm)
FROM sop30300
WHERE soptype = 3 AND btrim(sopnumbe) = ANY($1)
ORDER BY sopnumbe, lnitmseq`

const invoiceMaxOn = `
SELECT MAX(dex_row_ts) FROM sop30200
WHERE soptype = 3 AND docdate >= $1 AND docdate < $2`

const purchaseOrderHeader = `
SELECT btrim(h.ponumber),
       h.docdate,
       (h.subtotal + h.frtamnt + h.taxamnt + h.mscchamt - h.trdisamt),
       h.subtotal,
       h.frtamnt,
       h.taxamnt,
       h.mscchamt,
       h.trdisamt,
       btrim(h.vendorid),
       btrim(h.vendname),
       '',
       h.dex_row_ts,
       COALESCE(NULLIF(btrim(inet.emailtoaddress), ''), btrim(inet.inet1), '')
FROM pop10100 h
JOIN pm00200 v ON h.vendorid = v.vendorid
LEFT JOIN sy01200 inet ON inet.master_type = 'VEN'
    AND inet.master_id = h.vendorid
    AND inet.adrscode = v.vaddcdpr
WHERE h.postatus = 1
  AND %s
ORDER BY h.dex_row_ts ASC`

const purchaseOrderLines = `
SELECT btrim(ponumber), btrim(itemnmbr), btrim(itemdesc), qtyorder, unitcost, extdcost, btrim(uofm)
FROM pop10110
WHERE btrim(ponumber) = ANY($1)
ORDER BY ponumber, ord`

const purchaseOrderMaxOn = `
SELECT MAX(dex_row_ts) FROM pop10100
WHERE postatus = 1 AND docdate >= $1 AND docdate < $2`

const (
	condChangedAfter = "h.dex_row_ts > $1"
	condInvoiceIn    = "btrim(h.sopnumbe) = ANY($1)"
	condPOIn         = "btrim(h.ponumber) = ANY($1)"
)

func queriesFor(kind document.Kind) (kindQueries, error) {
	switch kind {
	case document.KindInvoice:
		return kindQueries{header: invoiceHeader, lines: invoiceLines, maxOn: invoiceMaxOn}, nil
	case document.KindPurchaseOrder:
		return kindQueries{header: purchaseOrderHeader, lines: purchaseOrderLines, maxOn: purchaseOrderMaxOn}, nil
	default:
		return kindQueries{}, fmt.Errorf("no queries for document kind %q", kind)
	}
}

func (q kindQueries) changedSince() string {
	return fmt.Sprintf(q.header, condChangedAfter)
}

func (q kindQueries) byNumbers(kind document.Kind) string {
	if kind == document.KindPurchaseOrder {
		return fmt.Sprintf(q.header, condPOIn)
	}
	return fmt.Sprintf(q.header, condInvoiceIn)
}
