package main

import (
	"fmt"
	"time"

	"document_notifier/internal/infra/logger"
	"document_notifier/internal/infra/web"

	"github.com/spf13/cobra"
)

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Contact mapping admin API",
	}
	cmd.AddCommand(newAdminServeCommand())
	cmd.AddCommand(newAdminTokenCommand())
	return cmd
}

func newAdminServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API without running the monitors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			admin, closeAdmin := newAdminService(cmd.Context(), cfg, newContactRepository(cfg))
			defer closeAdmin()

			srv, err := web.NewServer(cfg.AdminListenAddr, cfg.AdminJWTSecret, admin, logger.ForComponent("admin_api"))
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}

func newAdminTokenCommand() *cobra.Command {
	var (
		operator string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := web.GenerateToken(cfg.AdminJWTSecret, operator, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "admin", "name recorded with changes made using this token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
