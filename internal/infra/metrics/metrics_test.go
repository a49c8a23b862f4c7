package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetCursor(t *testing.T) {
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	SetCursor("metrics-test", ts)
	assert.InDelta(t, float64(ts.Unix()), testutil.ToFloat64(CursorTimestamp.WithLabelValues("metrics-test")), 0.001)
}

func TestSetState(t *testing.T) {
	all := []string{"CONNECTING", "MONITORING", "STOPPED"}
	SetState("metrics-test", "MONITORING", all)

	assert.Equal(t, 0.0, testutil.ToFloat64(SupervisorState.WithLabelValues("metrics-test", "CONNECTING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SupervisorState.WithLabelValues("metrics-test", "MONITORING")))

	SetState("metrics-test", "STOPPED", all)
	assert.Equal(t, 0.0, testutil.ToFloat64(SupervisorState.WithLabelValues("metrics-test", "MONITORING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SupervisorState.WithLabelValues("metrics-test", "STOPPED")))
}
