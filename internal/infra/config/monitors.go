package config

import (
	"fmt"
	"os"
	"strings"

	"document_notifier/internal/domain/document"

	"gopkg.in/yaml.v3"
)

// Future-dated checkpoint repair targets.
const (
	ResetToNow        = "now"
	ResetToStartOfDay = "start_of_day"
)

// MonitorConfig describes how one document kind is watched. The two monitors share the
// engine and differ only in these settings.
type MonitorConfig struct {
	Kind           document.Kind
	CheckpointFile string // relative to StateDir
	ProcessedFile  string // relative to StateDir; used only when Dedup is set
	// Dedup filters documents whose change timestamp also moves on edits.
	Dedup        bool
	FutureReset  string
	ContactsFile string // relative to ContactsDir
	StaticCC     string // comma separated, applied before the editable global CC
}

// DefaultMonitors returns the built-in invoice and purchase order profiles.
func DefaultMonitors() map[document.Kind]MonitorConfig {
	return map[document.Kind]MonitorConfig{
		document.KindInvoice: {
			Kind:           document.KindInvoice,
			CheckpointFile: "last_invoice_check.txt",
			ProcessedFile:  "processed_invoices.json",
			Dedup:          false,
			FutureReset:    ResetToNow,
			ContactsFile:   "customer_emails.json",
		},
		document.KindPurchaseOrder: {
			Kind:           document.KindPurchaseOrder,
			CheckpointFile: "last_po_check.txt",
			ProcessedFile:  "processed_pos.json",
			// PO change timestamps move on every edit, not just on approval.
			Dedup:        true,
			FutureReset:  ResetToStartOfDay,
			ContactsFile: "vendor_emails.json",
		},
	}
}

type overlayFile struct {
	Monitors map[string]monitorOverlay `yaml:"monitors"`
}

type monitorOverlay struct {
	CheckpointFile string  `yaml:"checkpoint_file"`
	ProcessedFile  string  `yaml:"processed_file"`
	Dedup          *bool   `yaml:"dedup"`
	FutureReset    string  `yaml:"future_reset"`
	ContactsFile   string  `yaml:"contacts_file"`
	StaticCC       *string `yaml:"static_cc"`
}

// applyOverlay merges the YAML monitor section into cfg. Only fields present in the file
// replace defaults.
func applyOverlay(cfg *AppConfig, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var of overlayFile
	if err := yaml.Unmarshal(b, &of); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	for name, ov := range of.Monitors {
		kind, ok := document.ParseKind(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			return fmt.Errorf("unknown monitor %q", name)
		}
		m := cfg.Monitors[kind]
		if ov.CheckpointFile != "" {
			m.CheckpointFile = ov.CheckpointFile
		}
		if ov.ProcessedFile != "" {
			m.ProcessedFile = ov.ProcessedFile
		}
		if ov.Dedup != nil {
			m.Dedup = *ov.Dedup
		}
		if ov.FutureReset != "" {
			reset := strings.ToLower(ov.FutureReset)
			if reset != ResetToNow && reset != ResetToStartOfDay {
				return fmt.Errorf("monitor %q: future_reset must be %q or %q", name, ResetToNow, ResetToStartOfDay)
			}
			m.FutureReset = reset
		}
		if ov.ContactsFile != "" {
			m.ContactsFile = ov.ContactsFile
		}
		if ov.StaticCC != nil {
			m.StaticCC = *ov.StaticCC
		}
		cfg.Monitors[kind] = m
	}
	return nil
}
