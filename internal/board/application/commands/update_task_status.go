package commands

import (
	"context"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/google/uuid"
)

// UpdateTaskStatusCommand moves a task to another column.
type UpdateTaskStatusCommand struct {
	TaskID      uuid.UUID
	Status      string
	PerformedBy uuid.UUID
}

// UpdateTaskStatusHandler handles the UpdateTaskStatusCommand. Column moves
// go through the versioned path without a baseline.
type UpdateTaskStatusHandler struct {
	resolver *services.ConflictResolver
}

// NewUpdateTaskStatusHandler creates a new UpdateTaskStatusHandler.
func NewUpdateTaskStatusHandler(resolver *services.ConflictResolver) *UpdateTaskStatusHandler {
	return &UpdateTaskStatusHandler{resolver: resolver}
}

// Handle executes the UpdateTaskStatusCommand.
func (h *UpdateTaskStatusHandler) Handle(ctx context.Context, cmd UpdateTaskStatusCommand) (*services.UpdateOutcome, error) {
	status, err := task.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	return h.resolver.Update(ctx, services.UpdateRequest{
		TaskID:      cmd.TaskID,
		Fields:      task.Fields{Status: &status},
		PerformedBy: cmd.PerformedBy,
	})
}
