package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
)

// InProcessBus is a Publisher that dispatches synchronously to a Registry.
// It stands in for RabbitMQ in local mode.
type InProcessBus struct {
	registry *Registry
	logger   *slog.Logger
}

// NewInProcessBus creates a bus with its own registry.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{registry: NewRegistry(logger), logger: logger}
}

// Register adds a handler.
func (b *InProcessBus) Register(h Handler) {
	b.registry.Register(h)
}

// Publish decodes body and dispatches it. Handler failures are logged and not
// returned, so a broken local consumer never blocks the outbox.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, body []byte) error {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		b.logger.Error("dropping undecodable event", "routing_key", routingKey, "error", err)
		return nil
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	if err := b.registry.Dispatch(ctx, &event); err != nil {
		b.logger.Warn("in-process dispatch failed", "routing_key", routingKey, "error", err)
	}
	return nil
}

func (b *InProcessBus) Close() error { return nil }

// NoopPublisher drops everything. Used in development when RabbitMQ is down.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a NoopPublisher.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, routingKey string, body []byte) error {
	p.logger.Debug("noop publish", "routing_key", routingKey, "size", len(body))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
