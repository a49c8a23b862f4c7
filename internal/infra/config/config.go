package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"document_notifier/internal/domain/document"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string
	LogLevel    string
	Environment string

	PollInterval time.Duration
	DryRun       bool

	// RedirectEmails forces every notification to TestRecipient (staging safety mode).
	RedirectEmails bool
	TestRecipient  string

	EmailDelay time.Duration // between consecutive sends in one batch
	BatchSize  int           // sends before a batch pause
	BatchPause time.Duration

	ResendAPIKey  string
	ResendBaseURL string
	FromEmail     string
	FromName      string

	StateDir      string
	StorageDriver string // "file" or "sqlite"
	SQLitePath    string
	ContactsDir   string

	TelegramToken       string
	TelegramAlertChatID int64
	AlertRatePerMinute  int
	DigestCronSpec      string

	AdminListenAddr string
	AdminJWTSecret  string

	Monitors map[document.Kind]MonitorConfig
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.DryRun, err = boolEnv("DRY_RUN", false); err != nil {
		return nil, err
	}
	if cfg.RedirectEmails, err = boolEnv("REDIRECT_EMAILS", false); err != nil {
		return nil, err
	}
	cfg.TestRecipient = strings.TrimSpace(os.Getenv("TEST_EMAIL_RECIPIENT"))

	if cfg.EmailDelay, err = durationEnv("EMAIL_DELAY", 25*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = intEnv("BATCH_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.BatchPause, err = durationEnv("BATCH_PAUSE", 120*time.Second); err != nil {
		return nil, err
	}

	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.ResendBaseURL = os.Getenv("RESEND_BASE_URL")
	if cfg.ResendBaseURL == "" {
		cfg.ResendBaseURL = "https://api.resend.com"
	}
	cfg.FromEmail = strings.TrimSpace(os.Getenv("FROM_EMAIL"))
	cfg.FromName = os.Getenv("FROM_NAME")

	cfg.StateDir = os.Getenv("STATE_DIR")
	if cfg.StateDir == "" {
		cfg.StateDir = "."
	}
	cfg.StorageDriver = strings.ToLower(os.Getenv("STORAGE_DRIVER"))
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = "file"
	}
	cfg.SQLitePath = os.Getenv("SQLITE_PATH")
	cfg.ContactsDir = os.Getenv("CONTACTS_DIR")
	if cfg.ContactsDir == "" {
		cfg.ContactsDir = cfg.StateDir
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if chatIDStr := os.Getenv("TELEGRAM_ALERT_CHAT_ID"); chatIDStr != "" {
		cfg.TelegramAlertChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALERT_CHAT_ID: %w", err)
		}
	}
	if cfg.AlertRatePerMinute, err = intEnv("ALERT_RATE_PER_MINUTE", 6); err != nil {
		return nil, err
	}
	cfg.DigestCronSpec = os.Getenv("DIGEST_CRON_SPEC")
	if cfg.DigestCronSpec == "" {
		cfg.DigestCronSpec = "0 18 * * *" // Default: 6 PM daily
	}

	cfg.AdminListenAddr = os.Getenv("ADMIN_LISTEN_ADDR")
	if cfg.AdminListenAddr == "" {
		cfg.AdminListenAddr = ":5000"
	}
	cfg.AdminJWTSecret = os.Getenv("ADMIN_JWT_SECRET")

	cfg.Monitors = DefaultMonitors()
	invoice := cfg.Monitors[document.KindInvoice]
	invoice.StaticCC = os.Getenv("INVOICE_GLOBAL_CC")
	cfg.Monitors[document.KindInvoice] = invoice
	po := cfg.Monitors[document.KindPurchaseOrder]
	po.StaticCC = os.Getenv("PO_GLOBAL_CC")
	cfg.Monitors[document.KindPurchaseOrder] = po

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyOverlay(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to apply CONFIG_FILE %s: %w", path, err)
		}
	}

	return cfg, nil
}

// ValidateForDispatch checks the settings that only matter when notifications may leave
// the process.
func (c *AppConfig) ValidateForDispatch() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.RedirectEmails && c.TestRecipient == "" {
		return fmt.Errorf("REDIRECT_EMAILS is enabled but TEST_EMAIL_RECIPIENT is not set")
	}
	if !c.DryRun {
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is not set")
		}
		if c.FromEmail == "" {
			return fmt.Errorf("FROM_EMAIL is not set")
		}
	}
	return nil
}

// Monitor returns the profile for kind.
func (c *AppConfig) Monitor(kind document.Kind) (MonitorConfig, error) {
	m, ok := c.Monitors[kind]
	if !ok {
		return MonitorConfig{}, fmt.Errorf("no monitor configured for %q", kind)
	}
	return m, nil
}

// durationEnv accepts Go durations ("90s", "2m") and bare integers meaning seconds.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	return parseDuration(key, v)
}

func parseDuration(key, v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid %s: negative duration", key)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
