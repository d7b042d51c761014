package queries

import (
	"context"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/presence"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/google/uuid"
)

// GetTaskQuery fetches one task.
type GetTaskQuery struct {
	TaskID uuid.UUID
}

// GetTaskHandler handles the GetTaskQuery.
type GetTaskHandler struct {
	taskRepo task.Repository
	users    user.Directory
	tracker  *services.PresenceTracker
}

// NewGetTaskHandler creates a new GetTaskHandler. tracker may be nil.
func NewGetTaskHandler(taskRepo task.Repository, users user.Directory, tracker *services.PresenceTracker) *GetTaskHandler {
	return &GetTaskHandler{taskRepo: taskRepo, users: users, tracker: tracker}
}

// Handle executes the GetTaskQuery.
func (h *GetTaskHandler) Handle(ctx context.Context, query GetTaskQuery) (*TaskDTO, error) {
	t, err := h.taskRepo.FindByID(ctx, query.TaskID)
	if err != nil {
		return nil, err
	}
	all, err := h.users.List(ctx)
	if err != nil {
		return nil, err
	}
	dto := ToTaskDTO(t, nameIndex(all))
	if h.tracker != nil {
		roster, err := h.tracker.Roster(ctx, t.ID())
		if err != nil {
			return nil, err
		}
		dto.Editors = roster.UserIDs
	}
	return &dto, nil
}

// ListTasksQuery lists tasks. Empty filters match everything.
type ListTasksQuery struct {
	Status     string
	AssignedTo *uuid.UUID
}

// ListTasksHandler handles the ListTasksQuery.
type ListTasksHandler struct {
	taskRepo task.Repository
	users    user.Directory
}

// NewListTasksHandler creates a new ListTasksHandler.
func NewListTasksHandler(taskRepo task.Repository, users user.Directory) *ListTasksHandler {
	return &ListTasksHandler{taskRepo: taskRepo, users: users}
}

// Handle executes the ListTasksQuery. Tasks come newest first.
func (h *ListTasksHandler) Handle(ctx context.Context, query ListTasksQuery) ([]TaskDTO, error) {
	var status task.Status
	if query.Status != "" {
		s, err := task.ParseStatus(query.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}

	tasks, err := h.taskRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	all, err := h.users.List(ctx)
	if err != nil {
		return nil, err
	}
	names := nameIndex(all)

	dtos := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		if status != "" && t.Status() != status {
			continue
		}
		if query.AssignedTo != nil && (t.AssignedTo() == nil || *t.AssignedTo() != *query.AssignedTo) {
			continue
		}
		dtos = append(dtos, ToTaskDTO(t, names))
	}
	return dtos, nil
}

// TaskEditorsQuery fetches the live editors of a task.
type TaskEditorsQuery struct {
	TaskID uuid.UUID
}

// TaskEditorsHandler handles the TaskEditorsQuery.
type TaskEditorsHandler struct {
	taskRepo task.Repository
	tracker  *services.PresenceTracker
}

// NewTaskEditorsHandler creates a new TaskEditorsHandler.
func NewTaskEditorsHandler(taskRepo task.Repository, tracker *services.PresenceTracker) *TaskEditorsHandler {
	return &TaskEditorsHandler{taskRepo: taskRepo, tracker: tracker}
}

// Handle executes the TaskEditorsQuery.
func (h *TaskEditorsHandler) Handle(ctx context.Context, query TaskEditorsQuery) (presence.Roster, error) {
	if _, err := h.taskRepo.FindByID(ctx, query.TaskID); err != nil {
		return presence.Roster{}, err
	}
	return h.tracker.Roster(ctx, query.TaskID)
}
