// Package metrics holds the Prometheus collectors of the notifier. They register with the
// default registry and are served from the admin server's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_notifier_notifications_total",
			Help: "Documents handled by the dispatch engine by outcome.",
		},
		[]string{"monitor", "outcome"},
	)
	DeliveryRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_notifier_delivery_retries_total",
			Help: "Delivery attempts that were retried after a transient failure.",
		},
		[]string{"monitor"},
	)
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "document_notifier_provider_request_duration_seconds",
			Help:    "Duration of delivery provider HTTP requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	PollErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_notifier_poll_errors_total",
			Help: "Failed change source polls by error class.",
		},
		[]string{"monitor", "class"},
	)
	CursorTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "document_notifier_cursor_timestamp_seconds",
			Help: "Current watermark of each monitor as a Unix timestamp.",
		},
		[]string{"monitor"},
	)
	SupervisorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "document_notifier_supervisor_state",
			Help: "1 for the state each monitor's supervisor is currently in.",
		},
		[]string{"monitor", "state"},
	)
)

// SetCursor publishes the watermark of monitor.
func SetCursor(monitor string, ts time.Time) {
	CursorTimestamp.WithLabelValues(monitor).Set(float64(ts.UnixNano()) / 1e9)
}

// SetState marks state as current for monitor and clears the others.
func SetState(monitor, state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		SupervisorState.WithLabelValues(monitor, s).Set(v)
	}
}
