package logger

import (
	"io"
	"os"
	"strings"

	"document_notifier/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const serviceName = "document_notifier"

// Log is the process-wide logger.
var Log = logrus.New()

// base carries the fields every component entry starts from.
var base = logrus.NewEntry(Log)

// Init applies the configured level and format to Log and stamps the service and
// environment onto every entry handed out by ForComponent and ForMonitor.
func Init(cfg *config.AppConfig) {
	base = setup(Log, cfg, os.Stdout)
	base.WithFields(logrus.Fields{
		"level":  Log.GetLevel().String(),
		"format": formatName(cfg.Environment),
	}).Debug("Logger configured")
}

func setup(l *logrus.Logger, cfg *config.AppConfig, out io.Writer) *logrus.Entry {
	l.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		l.SetLevel(logrus.InfoLevel)
		l.WithError(err).Warnf("Invalid log level %q, using info", cfg.LogLevel)
	} else {
		l.SetLevel(level)
	}

	if formatName(cfg.Environment) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	return l.WithFields(logrus.Fields{
		"service":     serviceName,
		"environment": strings.ToLower(cfg.Environment),
	})
}

// Deployed environments are scraped by a log shipper; everything else is read by people.
func formatName(environment string) string {
	switch strings.ToLower(environment) {
	case "production", "staging":
		return "json"
	default:
		return "text"
	}
}

func ForComponent(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// ForMonitor returns an entry tagged with the monitor kind and component name.
func ForMonitor(monitor, component string) *logrus.Entry {
	return ForComponent(component).WithField("monitor", monitor)
}
