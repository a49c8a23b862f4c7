package main

import (
	"context"
	"fmt"

	"document_notifier/internal/app"
	"document_notifier/internal/infra/config"
	"document_notifier/internal/infra/contacts"
	"document_notifier/internal/infra/database"
	"document_notifier/internal/infra/logger"
	"document_notifier/internal/infra/scheduler"
	"document_notifier/internal/infra/telegram"
	"document_notifier/internal/infra/web"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCommand() *cobra.Command {
	var (
		kinds     []string
		withAdmin bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the source database and send notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNotifier(cmd.Context(), kinds, withAdmin)
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "monitor", nil, "monitors to run (invoice, po); all by default")
	cmd.Flags().BoolVar(&withAdmin, "admin", false, "also serve the admin API on ADMIN_LISTEN_ADDR")
	return cmd
}

func runNotifier(ctx context.Context, kindNames []string, withAdmin bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDispatch(); err != nil {
		return err
	}
	log := logger.ForComponent("main")
	kinds, err := selectKinds(cfg, kindNames)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"monitors":    kinds,
		"dry_run":     cfg.DryRun,
		"redirect":    cfg.RedirectEmails,
	}).Info("Configuration loaded")

	repo := newContactRepository(cfg)
	watcher := contacts.NewWatcher(repo, kinds, logger.ForComponent("contacts_watcher"))
	if err := watcher.Reload(ctx); err != nil {
		log.WithError(err).Warn("Some contact files could not be read, continuing with what loaded")
	}

	alerter, bot, closeAlerter, err := newAlerter(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeAlerter()

	d, err := newDispatcher(cfg, watcher, alerter)
	if err != nil {
		return err
	}

	monitors := make([]*monitor, 0, len(kinds))
	defer func() {
		for _, m := range monitors {
			m.Close(log)
		}
	}()
	for _, kind := range kinds {
		m, err := d.newMonitor(kind)
		if err != nil {
			return err
		}
		monitors = append(monitors, m)
	}

	stats := make([]*app.Stats, 0, len(monitors))
	for _, m := range monitors {
		stats = append(stats, m.engine.Stats())
	}
	digest := scheduler.NewDigestScheduler(cfg.DigestCronSpec, stats, alerter, logger.ForComponent("scheduler"))
	if err := digest.Start(); err != nil {
		return err
	}
	defer digest.Stop()

	var admin *app.AdminService
	if bot != nil || withAdmin {
		var closeAdmin func()
		admin, closeAdmin = newAdminService(ctx, cfg, repo)
		defer closeAdmin()
	}
	var srv *web.Server
	if withAdmin {
		if srv, err = web.NewServer(cfg.AdminListenAddr, cfg.AdminJWTSecret, admin, logger.ForComponent("admin_api")); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := watcher.Run(gctx); err != nil {
			log.WithError(err).Warn("Contact hot reload disabled")
		}
		return nil
	})
	for _, m := range monitors {
		m := m
		g.Go(func() error {
			if err := m.supervisor.Run(gctx); err != nil {
				return fmt.Errorf("%s monitor: %w", m.kind, err)
			}
			return nil
		})
	}
	if srv != nil {
		g.Go(func() error { return srv.Run(gctx) })
	}

	if bot != nil {
		sources := make([]telegram.StatusSource, 0, len(monitors))
		for _, m := range monitors {
			sources = append(sources, m.supervisor)
		}
		telegram.NewCommandHandlers(gctx, admin, sources, cfg.TelegramAlertChatID, logger.ForComponent("telegram")).Register(bot)
		go bot.Start()
		defer bot.Stop()
		log.Info("Operator chat commands enabled")
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.WithError(err).Warn("Failed to notify systemd of readiness")
	} else if ok {
		log.Debug("Notified systemd of readiness")
	}
	log.Info("Notifier started")

	<-gctx.Done()
	log.Info("Shutting down...")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	err = g.Wait()
	if ctx.Err() != nil && err == nil {
		log.Info("Notifier stopped gracefully")
	}
	return err
}

// newAdminService backs the contact editor. Party search needs the source database and is
// left out when it cannot be reached.
func newAdminService(ctx context.Context, cfg *config.AppConfig, repo *contacts.FileRepository) (*app.AdminService, func()) {
	if cfg.DatabaseURL == "" {
		return app.NewAdminService(repo, nil), func() {}
	}
	db, err := database.NewPostgresConnection(ctx, cfg.DatabaseURL, database.SearchPool)
	if err != nil {
		logger.ForComponent("admin").WithError(err).Warn("Party search disabled: source database unreachable")
		return app.NewAdminService(repo, nil), func() {}
	}
	return app.NewAdminService(repo, database.NewPartyDirectory(db)), func() { _ = db.Close() }
}
