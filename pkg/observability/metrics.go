package observability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics records application metrics. Tags become labels.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, d time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// Metric names.
const (
	MetricWSConnections      = "taskboard.ws.connections"
	MetricWSMessages         = "taskboard.ws.messages"
	MetricWSMessageDuration  = "taskboard.ws.message_duration"
	MetricWSDropped          = "taskboard.ws.dropped_frames"
	MetricWSRateLimited      = "taskboard.ws.rate_limited"
	MetricUpdatesApplied     = "taskboard.updates.applied"
	MetricUpdateConflicts    = "taskboard.updates.conflicts"
	MetricUpdateRetries      = "taskboard.updates.cas_retries"
	MetricSmartAssignments   = "taskboard.assignments.smart"
	MetricPresenceEditors    = "taskboard.presence.editors"
	MetricPresenceSwept      = "taskboard.presence.swept"
	MetricBroadcasts         = "taskboard.broadcasts"
	MetricOutboxPublished    = "taskboard.outbox.published"
	MetricOutboxFailed       = "taskboard.outbox.failed"
	MetricOutboxDeadLettered = "taskboard.outbox.dead_lettered"
	MetricOutboxLag          = "taskboard.outbox.lag_seconds"
	MetricEventsConsumed     = "taskboard.events.consumed"
)

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// InMemoryMetrics keeps values in maps so tests can assert on them.
type InMemoryMetrics struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[seriesKey(name, tags)] += value
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[seriesKey(name, tags)] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := seriesKey(name, tags)
	m.histograms[k] = append(m.histograms[k], value)
}

func (m *InMemoryMetrics) Timing(name string, d time.Duration, tags ...Tag) {
	m.Histogram(name, d.Seconds(), tags...)
}

// GetCounter returns a counter value. Tag order does not matter.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[seriesKey(name, tags)]
}

// GetGauge returns a gauge value.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[seriesKey(name, tags)]
}

// GetHistogram returns the observations of a histogram.
func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float64(nil), m.histograms[seriesKey(name, tags)]...)
}

func seriesKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	sorted := append([]Tag(nil), tags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	b.WriteString(name)
	for _, t := range sorted {
		b.WriteString(":" + t.Key + "=" + t.Value)
	}
	return b.String()
}
