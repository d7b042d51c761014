package commands

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	sharedApplication "github.com/felixgeelhaar/taskboard/internal/shared/application"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// CreateTaskCommand contains the data needed to create a task.
type CreateTaskCommand struct {
	Title       string
	Description string
	Priority    string
	CreatedBy   uuid.UUID
}

// CreateTaskHandler handles the CreateTaskCommand.
type CreateTaskHandler struct {
	taskRepo     task.Repository
	activityRepo activity.Repository
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
	logger       *slog.Logger
}

// NewCreateTaskHandler creates a new CreateTaskHandler.
func NewCreateTaskHandler(
	taskRepo task.Repository,
	activityRepo activity.Repository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *CreateTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateTaskHandler{
		taskRepo:     taskRepo,
		activityRepo: activityRepo,
		outboxRepo:   outboxRepo,
		uow:          uow,
		logger:       logger,
	}
}

// Handle executes the CreateTaskCommand.
func (h *CreateTaskHandler) Handle(ctx context.Context, cmd CreateTaskCommand) (*task.Task, error) {
	priority, err := task.ParsePriority(cmd.Priority)
	if err != nil {
		return nil, err
	}
	t, err := task.NewTask(cmd.Title, cmd.Description, priority, cmd.CreatedBy)
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		taken, err := h.taskRepo.ExistsWithTitle(txCtx, t.Title(), uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return task.NewValidationError(task.FieldTitle, task.RuleUnique, task.ErrDuplicateTitle)
		}

		if err := h.taskRepo.Create(txCtx, t); err != nil {
			return err
		}

		entry := activity.NewEntry(t.ID(), activity.ActionCreated, cmd.CreatedBy, activity.CreatedDetails(t.Title())).
			WithSnapshots(nil, t)
		if err := h.activityRepo.Record(txCtx, entry); err != nil {
			return err
		}

		return saveEvents(ctx, txCtx, h.outboxRepo, t, cmd.CreatedBy)
	})
	if err != nil {
		return nil, err
	}

	h.logger.InfoContext(ctx, "task created", "task_id", t.ID(), "created_by", cmd.CreatedBy)
	return t, nil
}
