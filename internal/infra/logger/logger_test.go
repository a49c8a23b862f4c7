package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"document_notifier/internal/infra/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_ProductionWritesJSONWithServiceFields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	entry := setup(l, &config.AppConfig{LogLevel: "debug", Environment: "Production"}, &buf)

	entry.WithFields(logrus.Fields{"component": "engine", "monitor": "invoice"}).Debug("Batch done")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Batch done", line["msg"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, serviceName, line["service"])
	assert.Equal(t, "production", line["environment"])
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "invoice", line["monitor"])
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	setup(l, &config.AppConfig{LogLevel: "loud", Environment: "development"}, &buf)

	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
	assert.Contains(t, buf.String(), `Invalid log level \"loud\"`)
}

func TestForMonitor_CarriesBaseFields(t *testing.T) {
	saved := base
	t.Cleanup(func() { base = saved })
	base = logrus.NewEntry(logrus.New()).WithField("service", serviceName)

	e := ForMonitor("purchase_order", "cursor")

	assert.Equal(t, serviceName, e.Data["service"])
	assert.Equal(t, "purchase_order", e.Data["monitor"])
	assert.Equal(t, "cursor", e.Data["component"])
}

func TestFormatName(t *testing.T) {
	assert.Equal(t, "json", formatName("staging"))
	assert.Equal(t, "json", formatName("PRODUCTION"))
	assert.Equal(t, "text", formatName("development"))
	assert.Equal(t, "text", formatName(""))
}
