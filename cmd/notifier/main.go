// notifier watches the accounting database for new invoices and purchase orders and emails
// each one exactly once.
//
// Usage:
//
//	notifier run [--monitor invoice] [--admin]
//	notifier admin serve
//	notifier admin token --operator alice
//	notifier checkpoint show po
//	notifier checkpoint reset po --from-source
//	notifier force-send invoice INV-1001 INV-1002
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "notifier",
		Short:         "Document change notifier",
		Long:          "notifier emails customers and vendors when invoices and purchase orders appear in the source database.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newAdminCommand())
	rootCmd.AddCommand(newCheckpointCommand())
	rootCmd.AddCommand(newForceSendCommand())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
