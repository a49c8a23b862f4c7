package main

import (
	"testing"
	"time"

	"document_notifier/internal/app"
	"document_notifier/internal/domain/document"
	"document_notifier/internal/infra/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTCDay_UsesUTCCalendarDate(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	losAngeles := time.FixedZone("PDT", -7*60*60)
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"ahead of UTC after local midnight", time.Date(2024, 3, 2, 1, 0, 0, 0, tokyo), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"behind UTC before local midnight", time.Date(2024, 3, 1, 20, 0, 0, 0, losAngeles), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"already UTC", time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := utcDay(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T10:30:00Z", want},
		{"2024-03-01T12:30:00+02:00", want},
		{"2024-03-01T10:30:00", want},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := parseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestSelectKinds(t *testing.T) {
	cfg := &config.AppConfig{Monitors: config.DefaultMonitors()}

	kinds, err := selectKinds(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []document.Kind{document.KindInvoice, document.KindPurchaseOrder}, kinds)

	kinds, err = selectKinds(cfg, []string{"PO"})
	require.NoError(t, err)
	assert.Equal(t, []document.Kind{document.KindPurchaseOrder}, kinds)

	_, err = selectKinds(cfg, []string{"receipts"})
	assert.Error(t, err)
}

func TestFutureReset(t *testing.T) {
	assert.Equal(t, app.ResetToStartOfDay, futureReset(config.ResetToStartOfDay))
	assert.Equal(t, app.ResetToNow, futureReset(config.ResetToNow))
	assert.Equal(t, app.ResetToNow, futureReset(""))
}
