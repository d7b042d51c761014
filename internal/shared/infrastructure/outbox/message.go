// Package outbox stores domain events in the same transaction as the state
// change that raised them and relays them to the event bus afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/shared/domain"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Message is one pending or delivered event.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	RoutingKey       string
	Body             []byte
	CreatedAt        time.Time
	PublishedAt      *time.Time
	RetryCount       int
	LastError        *string
	NextRetryAt      *time.Time
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage encodes event as an eventbus.Event envelope.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.RoutingKey(), err)
	}

	body, err := json.Marshal(eventbus.Event{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
		Metadata:      eventbus.Metadata(event.Metadata()),
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event.RoutingKey(), err)
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		RoutingKey:    event.RoutingKey(),
		Body:          body,
		CreatedAt:     event.OccurredAt().UTC(),
	}, nil
}

// NewMessages encodes a batch of events.
func NewMessages(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, e := range events {
		m, err := NewMessage(e)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// IsPublished reports whether the message has been delivered.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}
