// Package eventbus moves integration events between the outbox and their
// consumers, over RabbitMQ in production and in-process locally.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the wire envelope for every integration event.
type Event struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      Metadata        `json:"metadata"`
}

// Metadata carries tracing and actor information.
type Metadata struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	CausationID   uuid.UUID `json:"causation_id"`
	UserID        uuid.UUID `json:"user_id"`
}

// Publisher sends encoded events to a broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

// Handler consumes events whose routing key matches one of its patterns.
// Patterns use AMQP topic syntax: "*" matches one word, "#" zero or more.
type Handler interface {
	Patterns() []string
	Handle(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	Keys []string
	Fn   func(ctx context.Context, event *Event) error
}

func (h HandlerFunc) Patterns() []string { return h.Keys }

func (h HandlerFunc) Handle(ctx context.Context, event *Event) error { return h.Fn(ctx, event) }
