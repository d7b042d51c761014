package application

import (
	"github.com/felixgeelhaar/taskboard/internal/shared/domain"
	"github.com/google/uuid"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// NewEventMetadata creates metadata for the events raised by one board
// operation. A nil correlation ID gets a fresh one.
func NewEventMetadata(actor, correlationID uuid.UUID) domain.EventMetadata {
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}
	return domain.EventMetadata{
		CorrelationID: correlationID,
		CausationID:   uuid.New(),
		UserID:        actor,
	}
}

// ApplyEventMetadata stamps every event that accepts metadata.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}
