package main

import (
	"context"
	"fmt"
	"strings"

	"document_notifier/internal/app"
	"document_notifier/internal/domain/contact"
	"document_notifier/internal/domain/document"
	"document_notifier/internal/infra/config"
	"document_notifier/internal/infra/contacts"
	"document_notifier/internal/infra/database"
	"document_notifier/internal/infra/logger"
	"document_notifier/internal/infra/render"
	"document_notifier/internal/infra/resend"
	"document_notifier/internal/infra/storage"
	"document_notifier/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load configuration: %w", err)
	}
	logger.Init(cfg)
	return cfg, nil
}

// allKinds keeps the monitors in a stable order for startup and status output.
var allKinds = []document.Kind{document.KindInvoice, document.KindPurchaseOrder}

func selectKinds(cfg *config.AppConfig, names []string) ([]document.Kind, error) {
	if len(names) == 0 {
		out := make([]document.Kind, 0, len(allKinds))
		for _, k := range allKinds {
			if _, ok := cfg.Monitors[k]; ok {
				out = append(out, k)
			}
		}
		return out, nil
	}
	out := make([]document.Kind, 0, len(names))
	for _, n := range names {
		k, err := parseKind(n)
		if err != nil {
			return nil, err
		}
		if _, err := cfg.Monitor(k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func parseKind(s string) (document.Kind, error) {
	k, ok := document.ParseKind(strings.ToLower(strings.TrimSpace(s)))
	if !ok {
		return "", fmt.Errorf("unknown document kind %q (use invoice or po)", s)
	}
	return k, nil
}

func futureReset(policy string) app.FutureReset {
	if policy == config.ResetToStartOfDay {
		return app.ResetToStartOfDay
	}
	return app.ResetToNow
}

func newContactRepository(cfg *config.AppConfig) *contacts.FileRepository {
	files := make(map[document.Kind]string, len(cfg.Monitors))
	for kind, mc := range cfg.Monitors {
		files[kind] = mc.ContactsFile
	}
	return contacts.NewFileRepository(cfg.ContactsDir, files, logger.ForComponent("contacts"))
}

func openState(cfg *config.AppConfig, mc config.MonitorConfig) (*storage.State, error) {
	return storage.Open(storage.Config{
		Driver:         cfg.StorageDriver,
		Dir:            cfg.StateDir,
		SQLitePath:     cfg.SQLitePath,
		Monitor:        string(mc.Kind),
		CheckpointFile: mc.CheckpointFile,
		ProcessedFile:  mc.ProcessedFile,
	}, logger.ForMonitor(string(mc.Kind), "storage"))
}

// newAlerter returns the Telegram alerter when a bot token and chat are configured, with
// its send worker already running. The bot is returned so run can also serve operator
// commands on it. The returned func flushes queued alerts and stops the worker.
func newAlerter(ctx context.Context, cfg *config.AppConfig, listen bool) (app.Alerter, *telebot.Bot, func(), error) {
	if cfg.TelegramToken == "" || cfg.TelegramAlertChatID == 0 {
		return app.NopAlerter{}, nil, func() {}, nil
	}
	log := logger.ForComponent("telegram")
	bot, err := telegram.NewBot(cfg.TelegramToken, listen, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	alerter := telegram.NewOpsAlerter(telegram.NewTelebotAdapter(bot), cfg.TelegramAlertChatID, cfg.AlertRatePerMinute, log)
	alerter.Start(context.WithoutCancel(ctx))
	return alerter, bot, alerter.Close, nil
}

// dispatcher holds what every monitor's engine shares.
type dispatcher struct {
	cfg      *config.AppConfig
	resolver *app.ContactResolver
	guard    *app.SafetyGuard
	builder  *render.Builder
	client   *resend.Client // nil in dry-run without an API key
	alerter  app.Alerter
}

func newDispatcher(cfg *config.AppConfig, provider contact.Provider, alerter app.Alerter) (*dispatcher, error) {
	staticCC := make(map[document.Kind][]string, len(cfg.Monitors))
	for kind, mc := range cfg.Monitors {
		staticCC[kind] = contact.SplitAddresses(mc.StaticCC)
	}
	builder, err := render.NewBuilder(cfg.FromName, cfg.FromEmail)
	if err != nil {
		return nil, err
	}
	d := &dispatcher{
		cfg:      cfg,
		resolver: app.NewContactResolver(provider, staticCC),
		guard:    app.NewSafetyGuard(cfg.RedirectEmails, cfg.TestRecipient),
		builder:  builder,
		alerter:  alerter,
	}
	if !cfg.DryRun || cfg.ResendAPIKey != "" {
		if d.client, err = resend.NewClient(cfg.ResendAPIKey, cfg.ResendBaseURL); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// monitor is one fully wired document stream.
type monitor struct {
	kind       document.Kind
	source     *database.PostgresSource
	state      *storage.State
	cursor     *app.Cursor
	engine     *app.Engine
	supervisor *app.Supervisor
}

func (d *dispatcher) newMonitor(kind document.Kind) (*monitor, error) {
	mc, err := d.cfg.Monitor(kind)
	if err != nil {
		return nil, err
	}
	source, err := database.NewPostgresSource(d.cfg.DatabaseURL, kind)
	if err != nil {
		return nil, err
	}
	state, err := openState(d.cfg, mc)
	if err != nil {
		return nil, fmt.Errorf("could not open state for %s: %w", kind, err)
	}

	name := string(kind)
	deps := app.EngineDeps{
		Resolver: d.resolver,
		Guard:    d.guard,
		Builder:  d.builder,
		Alerter:  d.alerter,
		Log:      logger.ForMonitor(name, "engine"),
	}
	if d.client != nil {
		deps.Client = d.client
	}
	if mc.Dedup {
		deps.Processed = state.Processed
	}
	engine := app.NewEngine(app.EngineConfig{
		Monitor: name,
		DryRun:  d.cfg.DryRun,
		Throttle: app.ThrottleConfig{
			Delay:      d.cfg.EmailDelay,
			BatchSize:  d.cfg.BatchSize,
			BatchPause: d.cfg.BatchPause,
		},
	}, deps)

	cursor := app.NewCursor(state.Checkpoint, futureReset(mc.FutureReset), name, logger.ForMonitor(name, "cursor"))
	sup := app.NewSupervisor(name, d.cfg.PollInterval, app.SupervisorDeps{
		Source:  source,
		Engine:  engine,
		Cursor:  cursor,
		Alerter: d.alerter,
		Log:     logger.ForMonitor(name, "supervisor"),
	})
	return &monitor{kind: kind, source: source, state: state, cursor: cursor, engine: engine, supervisor: sup}, nil
}

func (m *monitor) Close(log *logrus.Entry) {
	if err := m.source.Close(); err != nil {
		log.WithError(err).WithField("monitor", m.kind).Warn("Failed to close source")
	}
	if err := m.state.Close(); err != nil {
		log.WithError(err).WithField("monitor", m.kind).Warn("Failed to close state store")
	}
}
