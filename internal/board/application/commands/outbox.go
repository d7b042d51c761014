package commands

import (
	"context"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	sharedApplication "github.com/felixgeelhaar/taskboard/internal/shared/application"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
)

// saveEvents stamps and stores the pending events of t, then clears them.
func saveEvents(ctx, txCtx context.Context, repo outbox.Repository, t *task.Task, actor uuid.UUID) error {
	events := t.DomainEvents()
	sharedApplication.ApplyEventMetadata(events,
		sharedApplication.NewEventMetadata(actor, observability.CorrelationUUID(ctx)))

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	if err := repo.SaveBatch(txCtx, msgs); err != nil {
		return err
	}
	t.ClearDomainEvents()
	return nil
}
