package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
)

// ProcessorConfig tunes the relay loop.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	Retention        time.Duration
	CleanupInterval  time.Duration
}

// DefaultProcessorConfig returns the defaults used by the worker.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     500 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
		Retention:        7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Processor polls the outbox and publishes pending messages.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	metrics   observability.Metrics
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	statsMu sync.Mutex
	stats   Stats
}

// Stats summarises what the processor has done since it started.
type Stats struct {
	Running         bool
	Published       uint64
	Failed          uint64
	DeadLettered    uint64
	Purged          int64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
}

// NewProcessor creates a Processor. A nil metrics or logger is replaced by a
// no-op and slog.Default.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, metrics observability.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the poll and cleanup loops until Stop or ctx is done. Calling
// Start on a running processor does nothing.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)
}

// Stop halts the loops and waits for the in-flight batch.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether Start has been called without a matching Stop.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Processor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	cleanupEvery := p.config.CleanupInterval
	if cleanupEvery <= 0 {
		cleanupEvery = time.Hour
	}
	cleanup := time.NewTicker(cleanupEvery)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			if err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox batch failed", "error", err)
			}
		case <-cleanup.C:
			if _, err := p.Cleanup(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox cleanup failed", "error", err)
			}
		}
	}
}

// ProcessOnce publishes one batch of pending messages.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	now := p.now()
	msgs, err := p.repo.Pending(ctx, now, p.config.BatchSize)
	if err != nil {
		p.recordError(err)
		return err
	}
	p.recordBatch(now, msgs)

	for _, m := range msgs {
		if err := p.publisher.Publish(ctx, m.RoutingKey, m.Body); err != nil {
			p.handleFailure(ctx, m, err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, m.ID, p.now()); err != nil {
			p.logger.Error("mark outbox message published", "id", m.ID, "event_id", m.EventID, "error", err)
			continue
		}
		p.statsMu.Lock()
		p.stats.Published++
		p.statsMu.Unlock()
		p.metrics.Counter(observability.MetricOutboxPublished, 1, observability.T("routing_key", m.RoutingKey))
	}
	return nil
}

func (p *Processor) handleFailure(ctx context.Context, m *Message, cause error) {
	p.recordError(cause)
	p.logger.Warn("publish outbox message",
		"id", m.ID,
		"event_id", m.EventID,
		"routing_key", m.RoutingKey,
		"retry_count", m.RetryCount,
		"error", cause,
	)

	if p.config.MaxRetries <= 0 || m.RetryCount+1 >= p.config.MaxRetries {
		p.statsMu.Lock()
		p.stats.DeadLettered++
		p.statsMu.Unlock()
		p.metrics.Counter(observability.MetricOutboxDeadLettered, 1, observability.T("routing_key", m.RoutingKey))
		if err := p.repo.MarkDead(ctx, m.ID, cause.Error(), p.now()); err != nil {
			p.logger.Error("dead-letter outbox message", "id", m.ID, "error", err)
		}
		return
	}

	p.statsMu.Lock()
	p.stats.Failed++
	p.statsMu.Unlock()
	p.metrics.Counter(observability.MetricOutboxFailed, 1, observability.T("routing_key", m.RoutingKey))
	next := p.now().Add(p.RetryDelay(m.RetryCount + 1))
	if err := p.repo.MarkFailed(ctx, m.ID, cause.Error(), next); err != nil {
		p.logger.Error("mark outbox message failed", "id", m.ID, "error", err)
	}
}

// RetryDelay is the wait before the given attempt: the base doubled per
// previous attempt, capped at the configured maximum.
func (p *Processor) RetryDelay(attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.config.RetryBackoffBase,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.config.RetryBackoffMax,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Minute
	}
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Cleanup purges messages published longer ago than the retention period.
func (p *Processor) Cleanup(ctx context.Context) (int64, error) {
	retention := p.config.Retention
	if retention <= 0 {
		return 0, nil
	}
	n, err := p.repo.Purge(ctx, p.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("purged published outbox messages", "count", n)
	}
	p.statsMu.Lock()
	p.stats.Purged += n
	p.statsMu.Unlock()
	return n, nil
}

// Stats returns a snapshot of the processor counters.
func (p *Processor) Stats() Stats {
	running := p.IsRunning()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	s := p.stats
	s.Running = running
	return s
}

func (p *Processor) recordError(err error) {
	now := p.now()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

func (p *Processor) recordBatch(now time.Time, msgs []*Message) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.LastProcessedAt = &now
	p.stats.LagSeconds = 0
	for _, m := range msgs {
		if lag := now.Sub(m.CreatedAt).Seconds(); lag > p.stats.LagSeconds {
			p.stats.LagSeconds = lag
		}
	}
	p.metrics.Gauge(observability.MetricOutboxLag, p.stats.LagSeconds)
}
