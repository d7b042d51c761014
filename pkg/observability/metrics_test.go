package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryMetrics(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Counter(MetricBroadcasts, 1, T("scope", "global"), T("event", "taskCreated"))
	m.Counter(MetricBroadcasts, 2, T("event", "taskCreated"), T("scope", "global"))
	m.Gauge(MetricPresenceEditors, 3)
	m.Timing(MetricWSMessageDuration, 250*time.Millisecond)

	assert.Equal(t, int64(3), m.GetCounter(MetricBroadcasts, T("scope", "global"), T("event", "taskCreated")))
	assert.Zero(t, m.GetCounter(MetricBroadcasts))
	assert.Equal(t, 3.0, m.GetGauge(MetricPresenceEditors))
	assert.Equal(t, []float64{0.25}, m.GetHistogram(MetricWSMessageDuration))
}

func TestPrometheusMetrics_CountersAndGauges(t *testing.T) {
	p := NewPrometheusMetrics(DiscardLogger())

	p.Counter(MetricUpdatesApplied, 2, T("action", "status_changed"))
	p.Counter(MetricUpdatesApplied, 1, T("action", "status_changed"))
	p.Gauge(MetricOutboxLag, 1.5)

	assert.Equal(t, 3.0, testutil.ToFloat64(p.counters[MetricUpdatesApplied].WithLabelValues("status_changed")))
	assert.Equal(t, 1.5, testutil.ToFloat64(p.gauges[MetricOutboxLag].WithLabelValues()))
}

func TestPrometheusMetrics_MismatchedLabelsAreDropped(t *testing.T) {
	p := NewPrometheusMetrics(DiscardLogger())

	p.Counter(MetricWSMessages, 1, T("event", "joinTask"))
	assert.NotPanics(t, func() {
		p.Counter(MetricWSMessages, 1, T("other", "x"))
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(p.counters[MetricWSMessages].WithLabelValues("joinTask")))
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	p := NewPrometheusMetrics(DiscardLogger())
	p.Counter(MetricSmartAssignments, 1)
	p.Timing(MetricWSMessageDuration, 10*time.Millisecond, T("event", "updateTask"))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "taskboard_assignments_smart_total 1"))
	assert.Contains(t, text, `taskboard_ws_message_duration_seconds_count{event="updateTask"} 1`)
	assert.Contains(t, text, "go_goroutines")
}

func TestStopwatch(t *testing.T) {
	m := NewInMemoryMetrics()
	sw := StartStopwatch(m, MetricWSMessageDuration, T("event", "ping"))
	d := sw.Stop("ok")

	obs := m.GetHistogram(MetricWSMessageDuration, T("event", "ping"), T("outcome", "ok"))
	require.Len(t, obs, 1)
	assert.InDelta(t, d.Seconds(), obs[0], 1e-9)
}
