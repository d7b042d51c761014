package commands

import (
	"context"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/google/uuid"
)

// UpdateTaskCommand is an edit made against the version the client saw.
type UpdateTaskCommand struct {
	TaskID        uuid.UUID
	Fields        task.Fields
	ClientVersion *int
	PerformedBy   uuid.UUID
}

// UpdateTaskHandler handles the UpdateTaskCommand.
type UpdateTaskHandler struct {
	resolver *services.ConflictResolver
}

// NewUpdateTaskHandler creates a new UpdateTaskHandler.
func NewUpdateTaskHandler(resolver *services.ConflictResolver) *UpdateTaskHandler {
	return &UpdateTaskHandler{resolver: resolver}
}

// Handle executes the UpdateTaskCommand. A stale ClientVersion yields a
// conflict outcome, not an error.
func (h *UpdateTaskHandler) Handle(ctx context.Context, cmd UpdateTaskCommand) (*services.UpdateOutcome, error) {
	return h.resolver.Update(ctx, services.UpdateRequest{
		TaskID:      cmd.TaskID,
		Fields:      cmd.Fields,
		PerformedBy: cmd.PerformedBy,
		Baseline:    cmd.ClientVersion,
	})
}

// ResolveConflictCommand settles a conflict reported earlier.
type ResolveConflictCommand struct {
	TaskID      uuid.UUID
	Resolution  services.Resolution
	PerformedBy uuid.UUID
}

// ResolveConflictHandler handles the ResolveConflictCommand.
type ResolveConflictHandler struct {
	resolver *services.ConflictResolver
}

// NewResolveConflictHandler creates a new ResolveConflictHandler.
func NewResolveConflictHandler(resolver *services.ConflictResolver) *ResolveConflictHandler {
	return &ResolveConflictHandler{resolver: resolver}
}

// Handle executes the ResolveConflictCommand.
func (h *ResolveConflictHandler) Handle(ctx context.Context, cmd ResolveConflictCommand) (*services.UpdateOutcome, error) {
	return h.resolver.Resolve(ctx, cmd.TaskID, cmd.Resolution, cmd.PerformedBy)
}
