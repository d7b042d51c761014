package commands

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	sharedApplication "github.com/felixgeelhaar/taskboard/internal/shared/application"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// DeleteTaskCommand removes a task.
type DeleteTaskCommand struct {
	TaskID      uuid.UUID
	PerformedBy uuid.UUID
}

// DeleteTaskResult is the removed task and the editors whose sessions ended
// with it.
type DeleteTaskResult struct {
	Task    *task.Task
	Editors []uuid.UUID
}

// DeleteTaskHandler handles the DeleteTaskCommand.
type DeleteTaskHandler struct {
	taskRepo     task.Repository
	activityRepo activity.Repository
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
	tracker      *services.PresenceTracker
	logger       *slog.Logger
}

// NewDeleteTaskHandler creates a new DeleteTaskHandler. tracker may be nil.
func NewDeleteTaskHandler(
	taskRepo task.Repository,
	activityRepo activity.Repository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	tracker *services.PresenceTracker,
	logger *slog.Logger,
) *DeleteTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteTaskHandler{
		taskRepo:     taskRepo,
		activityRepo: activityRepo,
		outboxRepo:   outboxRepo,
		uow:          uow,
		tracker:      tracker,
		logger:       logger,
	}
}

// Handle executes the DeleteTaskCommand.
func (h *DeleteTaskHandler) Handle(ctx context.Context, cmd DeleteTaskCommand) (*DeleteTaskResult, error) {
	removed, err := sharedApplication.InUnitOfWork(ctx, h.uow, func(txCtx context.Context) (*task.Task, error) {
		t, err := h.taskRepo.FindByID(txCtx, cmd.TaskID)
		if err != nil {
			return nil, err
		}
		t.MarkDeleted(cmd.PerformedBy)

		if err := h.taskRepo.Delete(txCtx, t.ID()); err != nil {
			return nil, err
		}

		entry := activity.NewEntry(t.ID(), activity.ActionDeleted, cmd.PerformedBy, activity.DeletedDetails(t.Title())).
			WithSnapshots(t, nil)
		if err := h.activityRepo.Record(txCtx, entry); err != nil {
			return nil, err
		}

		if err := saveEvents(ctx, txCtx, h.outboxRepo, t, cmd.PerformedBy); err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	result := &DeleteTaskResult{Task: removed}
	if h.tracker != nil {
		result.Editors = h.endSessions(ctx, removed.ID())
	}

	h.logger.InfoContext(ctx, "task deleted", "task_id", removed.ID(), "performed_by", cmd.PerformedBy)
	return result, nil
}

// endSessions drops every editing session of a deleted task, idle ones
// included. Presence is advisory, so a failure is only logged.
func (h *DeleteTaskHandler) endSessions(ctx context.Context, taskID uuid.UUID) []uuid.UUID {
	removed, err := h.tracker.ClearTask(ctx, taskID)
	if err != nil {
		h.logger.WarnContext(ctx, "end sessions of deleted task", "task_id", taskID, "error", err)
		return nil
	}
	return removed
}
