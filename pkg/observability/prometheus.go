package observability

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on a private Prometheus registry.
// Metric names are converted to snake case ("taskboard.ws.messages" becomes
// "taskboard_ws_messages"); counters gain a "_total" suffix. The label set of
// a series is fixed by its first use; later calls with other labels are dropped.
type PrometheusMetrics struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics creates a registry with Go runtime and process
// collectors already registered.
func NewPrometheusMetrics(logger *slog.Logger) *PrometheusMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusMetrics{
		registry:   reg,
		logger:     logger,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	keys, labels := splitTags(tags)
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: promName(name) + "_total",
			Help: "Counter " + name,
		}, keys)
		p.register(name, vec)
		p.counters[name] = vec
	}
	p.mu.Unlock()

	c, err := vec.GetMetricWith(labels)
	if err != nil {
		p.logger.Debug("dropping counter sample", "metric", name, "error", err)
		return
	}
	c.Add(float64(value))
}

func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	keys, labels := splitTags(tags)
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: promName(name),
			Help: "Gauge " + name,
		}, keys)
		p.register(name, vec)
		p.gauges[name] = vec
	}
	p.mu.Unlock()

	g, err := vec.GetMetricWith(labels)
	if err != nil {
		p.logger.Debug("dropping gauge sample", "metric", name, "error", err)
		return
	}
	g.Set(value)
}

func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...Tag) {
	keys, labels := splitTags(tags)
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    promName(name),
			Help:    "Histogram " + name,
			Buckets: prometheus.DefBuckets,
		}, keys)
		p.register(name, vec)
		p.histograms[name] = vec
	}
	p.mu.Unlock()

	h, err := vec.GetMetricWith(labels)
	if err != nil {
		p.logger.Debug("dropping histogram sample", "metric", name, "error", err)
		return
	}
	h.Observe(value)
}

// Timing observes d in seconds.
func (p *PrometheusMetrics) Timing(name string, d time.Duration, tags ...Tag) {
	p.Histogram(name+"_seconds", d.Seconds(), tags...)
}

func (p *PrometheusMetrics) register(name string, c prometheus.Collector) {
	if err := p.registry.Register(c); err != nil {
		p.logger.Warn("registering metric", "metric", name, "error", err)
	}
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func splitTags(tags []Tag) ([]string, prometheus.Labels) {
	keys := make([]string, 0, len(tags))
	labels := make(prometheus.Labels, len(tags))
	for _, t := range tags {
		if _, dup := labels[t.Key]; !dup {
			keys = append(keys, t.Key)
		}
		labels[t.Key] = t.Value
	}
	sort.Strings(keys)
	return keys, labels
}
