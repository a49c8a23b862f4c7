package main

import (
	"context"
	"fmt"
	"strings"

	"document_notifier/internal/domain/document"
	"document_notifier/internal/infra/contacts"
	"document_notifier/internal/infra/logger"

	"github.com/spf13/cobra"
)

func newForceSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "force-send <kind> <number>...",
		Short: "Send specific documents now, ignoring the checkpoint and processed set",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForDispatch(); err != nil {
				return err
			}
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			numbers := args[1:]
			log := logger.ForMonitor(string(kind), "force_send")

			repo := newContactRepository(cfg)
			provider := newStaticProvider(cmd.Context(), repo, kind)
			alerter, _, closeAlerter, err := newAlerter(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer closeAlerter()
			d, err := newDispatcher(cfg, provider, alerter)
			if err != nil {
				return err
			}
			m, err := d.newMonitor(kind)
			if err != nil {
				return err
			}
			defer m.Close(log)

			ctx := cmd.Context()
			if err := m.source.Connect(ctx); err != nil {
				return err
			}
			records, err := m.source.ByNumbers(ctx, numbers)
			if err != nil {
				return err
			}
			found := make(map[string]bool, len(records))
			for _, r := range records {
				found[strings.ToUpper(r.Identity)] = true
			}
			out := cmd.OutOrStdout()
			for _, n := range numbers {
				if !found[strings.ToUpper(strings.TrimSpace(n))] {
					fmt.Fprintf(out, "%s %s: not found\n", kind.Title(), n)
				}
			}
			if len(records) == 0 {
				return fmt.Errorf("none of the requested documents were found")
			}

			res := m.engine.ForceSend(ctx, records)
			fmt.Fprintf(out, "%d sent, %d skipped (no contact), %d failed\n", res.Sent, res.Skipped, res.Failed)
			if res.Interrupted {
				return fmt.Errorf("interrupted after %d of %d documents", res.Attempted, len(records))
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d documents failed", res.Failed)
			}
			return nil
		},
	}
}

// newStaticProvider loads the contact files once; a one-shot command has no need for the
// file watcher.
func newStaticProvider(ctx context.Context, repo *contacts.FileRepository, kind document.Kind) *contacts.Watcher {
	w := contacts.NewWatcher(repo, []document.Kind{kind}, logger.ForComponent("contacts"))
	if err := w.Reload(ctx); err != nil {
		logger.ForComponent("contacts").WithError(err).Warn("Some contact files could not be read, continuing with what loaded")
	}
	return w
}
