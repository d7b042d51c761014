package queries

import (
	"context"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/google/uuid"
)

// ListUsersHandler lists users with their current load.
type ListUsersHandler struct {
	users    user.Directory
	taskRepo task.Repository
}

// NewListUsersHandler creates a new ListUsersHandler.
func NewListUsersHandler(users user.Directory, taskRepo task.Repository) *ListUsersHandler {
	return &ListUsersHandler{users: users, taskRepo: taskRepo}
}

// Handle lists users in registration order.
func (h *ListUsersHandler) Handle(ctx context.Context) ([]UserDTO, error) {
	all, err := h.users.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(all))
	for i, u := range all {
		ids[i] = u.ID
	}
	counts, err := h.taskRepo.CountOpenByAssignee(ctx, ids)
	if err != nil {
		return nil, err
	}

	dtos := make([]UserDTO, len(all))
	for i, u := range all {
		dtos[i] = UserDTO{
			ID:            u.ID,
			Name:          u.Name,
			Email:         u.Email,
			CreatedAt:     u.CreatedAt,
			OpenTaskCount: counts[u.ID],
		}
	}
	return dtos, nil
}
