// Package render turns change records into HTML email messages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"document_notifier/internal/domain/delivery"
	"document_notifier/internal/domain/document"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templateFS embed.FS

// idempotencyNamespace scopes the provider idempotency keys of this service.
var idempotencyNamespace = uuid.MustParse("6f1c2a8e-3b57-4f0e-9d2a-6c1f6b9e4d21")

// Builder implements delivery.Builder.
type Builder struct {
	fromName  string
	fromEmail string
	tmpl      *template.Template
}

type view struct {
	Record      *document.ChangeRecord
	Company     string
	Badge       string
	TotalLabel  string
	NumberLabel string
	PartyLabel  string
	PriceLabel  string
}

func NewBuilder(fromName, fromEmail string) (*Builder, error) {
	printer := message.NewPrinter(language.AmericanEnglish)
	funcs := template.FuncMap{
		"money": func(v float64) string { return printer.Sprintf("$%.2f", v) },
		"qty":   func(v float64) string { return printer.Sprintf("%.2f", v) },
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "N/A"
			}
			return t.Format("January 02, 2006")
		},
	}
	tmpl, err := template.New("document.html").Funcs(funcs).ParseFS(templateFS, "templates/document.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Builder{fromName: fromName, fromEmail: fromEmail, tmpl: tmpl}, nil
}

func (b *Builder) Build(rec *document.ChangeRecord) (delivery.Message, error) {
	v := view{Record: rec, Company: b.fromName}
	switch rec.Kind {
	case document.KindInvoice:
		v.Badge, v.TotalLabel, v.NumberLabel, v.PartyLabel, v.PriceLabel = "INVOICE", "Amount Due", "Invoice Number", "Customer", "UNIT PRICE"
	case document.KindPurchaseOrder:
		v.Badge, v.TotalLabel, v.NumberLabel, v.PartyLabel, v.PriceLabel = "PURCHASE ORDER", "PO Total", "PO Number", "Vendor", "UNIT COST"
	default:
		return delivery.Message{}, fmt.Errorf("cannot render document kind %q", rec.Kind)
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, v); err != nil {
		return delivery.Message{}, fmt.Errorf("failed to render %s %s: %w", rec.Kind, rec.Identity, err)
	}

	return delivery.Message{
		From:           b.from(),
		To:             append([]string(nil), rec.ResolvedTo...),
		CC:             append([]string(nil), rec.ResolvedCC...),
		Subject:        Subject(rec.Kind, rec.Identity, b.fromName),
		HTML:           buf.String(),
		IdempotencyKey: IdempotencyKey(rec),
	}, nil
}

func (b *Builder) from() string {
	if b.fromName == "" {
		return b.fromEmail
	}
	return fmt.Sprintf("%s <%s>", b.fromName, b.fromEmail)
}

// Subject is "Invoice #N from Sender" or "Purchase Order #N from Sender".
func Subject(kind document.Kind, number, fromName string) string {
	return fmt.Sprintf("%s #%s from %s", kind.Title(), number, fromName)
}

// IdempotencyKey is stable for one version of one document, so a resend after a crash is
// dropped by the provider while an edited purchase order is not.
func IdempotencyKey(rec *document.ChangeRecord) string {
	name := fmt.Sprintf("%s|%s|%s", rec.Kind, rec.Identity, rec.ChangedAt.UTC().Format(time.RFC3339Nano))
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}
