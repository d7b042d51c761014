package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	aggregateID := uuid.New()
	before := time.Now().UTC()

	event := domain.NewBaseEvent(aggregateID, "TestAggregate", "test.event.created")

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggregateID, event.AggregateID())
	assert.Equal(t, "TestAggregate", event.AggregateType())
	assert.Equal(t, "test.event.created", event.RoutingKey())
	assert.False(t, event.OccurredAt().Before(before))
}

func TestBaseEvent_SetMetadata(t *testing.T) {
	event := newTestAggregateEvent(uuid.New())
	meta := domain.EventMetadata{
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		UserID:        uuid.New(),
	}

	event.SetMetadata(meta)

	assert.Equal(t, meta, event.Metadata())
}

func TestBaseEvent_MarshalsOnlyPayload(t *testing.T) {
	event := newTestAggregateEvent(uuid.New())
	event.Name = "payload"

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	assert.JSONEq(t, `{"name":"payload"}`, string(raw))
}
