package main

import (
	"errors"
	"fmt"
	"time"

	"document_notifier/internal/app"
	"document_notifier/internal/domain/checkpoint"
	"document_notifier/internal/infra/database"
	"document_notifier/internal/infra/logger"
	"document_notifier/internal/infra/storage"

	"github.com/spf13/cobra"
)

func newCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or move a monitor's checkpoint",
	}
	cmd.AddCommand(newCheckpointShowCommand())
	cmd.AddCommand(newCheckpointResetCommand())
	return cmd
}

func newCheckpointShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind>",
		Short: "Print the persisted checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			mc, err := cfg.Monitor(kind)
			if err != nil {
				return err
			}
			state, err := openState(cfg, mc)
			if err != nil {
				return err
			}
			defer state.Close()

			out := cmd.OutOrStdout()
			ts, found, err := state.Checkpoint.Load(cmd.Context())
			switch {
			case errors.Is(err, checkpoint.ErrCorrupt):
				fmt.Fprintf(out, "%s: checkpoint is corrupt (%v)\n", kind, err)
			case err != nil:
				return err
			case !found:
				fmt.Fprintf(out, "%s: no checkpoint\n", kind)
			default:
				fmt.Fprintf(out, "%s: %s\n", kind, storage.FormatCursor(ts))
			}

			if n, err := state.Processed.Len(cmd.Context()); err == nil && mc.Dedup {
				fmt.Fprintf(out, "%s: %d processed documents\n", kind, n)
			}
			return nil
		},
	}
}

func newCheckpointResetCommand() *cobra.Command {
	var (
		to         string
		now        bool
		fromSource bool
	)
	cmd := &cobra.Command{
		Use:   "reset <kind>",
		Short: "Move the checkpoint, forwards or backwards",
		Long: `Move the checkpoint of one monitor. Exactly one of --to, --now or --from-source is required.

--from-source sets the checkpoint to the latest change timestamp among today's documents,
so only documents changed after that are sent. Stop the running notifier first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chosen := 0
			for _, set := range []bool{to != "", now, fromSource} {
				if set {
					chosen++
				}
			}
			if chosen != 1 {
				return errors.New("exactly one of --to, --now or --from-source is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			mc, err := cfg.Monitor(kind)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var target time.Time
			switch {
			case to != "":
				if target, err = parseTimestamp(to); err != nil {
					return err
				}
			case now:
				target = time.Now().UTC()
			case fromSource:
				if cfg.DatabaseURL == "" {
					return errors.New("DATABASE_URL is not set")
				}
				source, err := database.NewPostgresSource(cfg.DatabaseURL, kind)
				if err != nil {
					return err
				}
				if err := source.Connect(ctx); err != nil {
					return err
				}
				defer source.Close()

				today := utcDay(time.Now())
				latest, ok, err := source.MaxChangedOn(ctx, today)
				if err != nil {
					return err
				}
				if ok {
					target = latest
				} else {
					target = today
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no documents today, using start of day\n", kind)
				}
			}

			state, err := openState(cfg, mc)
			if err != nil {
				return err
			}
			defer state.Close()

			name := string(kind)
			cursor := app.NewCursor(state.Checkpoint, futureReset(mc.FutureReset), name, logger.ForMonitor(name, "cursor"))
			if err := cursor.Reset(ctx, target); err != nil {
				return fmt.Errorf("failed to save checkpoint: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: checkpoint set to %s\n", kind, storage.FormatCursor(target.UTC()))
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "timestamp (RFC 3339 or checkpoint file format, UTC when no zone)")
	cmd.Flags().BoolVar(&now, "now", false, "set to the current time")
	cmd.Flags().BoolVar(&fromSource, "from-source", false, "set to the latest change among today's documents")
	return cmd
}

// utcDay is the start of the UTC calendar day containing t. Checkpoints are UTC, so
// "today" is too, whatever the host zone.
func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := storage.ParseCursor(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return ts, nil
}
