package application

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	domain.BaseEvent
}

// plainEvent does not accept metadata.
type plainEvent struct{}

func (plainEvent) EventID() uuid.UUID             { return uuid.Nil }
func (plainEvent) AggregateID() uuid.UUID         { return uuid.Nil }
func (plainEvent) AggregateType() string          { return "plain" }
func (plainEvent) RoutingKey() string             { return "plain.event" }
func (plainEvent) OccurredAt() time.Time          { return time.Time{} }
func (plainEvent) Metadata() domain.EventMetadata { return domain.EventMetadata{} }

func TestNewEventMetadata(t *testing.T) {
	actor := uuid.New()

	t.Run("keeps the given correlation ID", func(t *testing.T) {
		correlation := uuid.New()
		md := NewEventMetadata(actor, correlation)

		assert.Equal(t, actor, md.UserID)
		assert.Equal(t, correlation, md.CorrelationID)
		assert.NotEqual(t, uuid.Nil, md.CausationID)
	})

	t.Run("generates a correlation ID when missing", func(t *testing.T) {
		a := NewEventMetadata(actor, uuid.Nil)
		b := NewEventMetadata(actor, uuid.Nil)

		assert.NotEqual(t, uuid.Nil, a.CorrelationID)
		assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
	})
}

func TestApplyEventMetadata(t *testing.T) {
	first := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Task", "board.task.created")}
	second := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Task", "board.task.updated")}
	md := NewEventMetadata(uuid.New(), uuid.Nil)

	ApplyEventMetadata([]domain.DomainEvent{first, plainEvent{}, second}, md)

	assert.Equal(t, md, first.Metadata())
	assert.Equal(t, md, second.Metadata())

	require.NotPanics(t, func() { ApplyEventMetadata(nil, md) })
}
