package observability

import "time"

// Stopwatch times one operation and records it as a histogram when stopped.
type Stopwatch struct {
	metrics Metrics
	name    string
	tags    []Tag
	start   time.Time
}

// StartStopwatch starts timing name.
func StartStopwatch(metrics Metrics, name string, tags ...Tag) *Stopwatch {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Stopwatch{metrics: metrics, name: name, tags: tags, start: time.Now()}
}

// Stop records the elapsed time with an outcome label and returns it.
func (s *Stopwatch) Stop(outcome string) time.Duration {
	d := time.Since(s.start)
	tags := append(append([]Tag(nil), s.tags...), T("outcome", outcome))
	s.metrics.Timing(s.name, d, tags...)
	return d
}
