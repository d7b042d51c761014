package task

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the record store for tasks.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// FindAll returns every task, newest first.
	FindAll(ctx context.Context) ([]*Task, error)
	// ExistsWithTitle reports whether another task already uses title.
	ExistsWithTitle(ctx context.Context, title string, excludeID uuid.UUID) (bool, error)
	Create(ctx context.Context, t *Task) error
	// ConditionalUpdate writes t only if the stored version still equals
	// t.Version(). On success the stored and in-memory versions are bumped by
	// one; otherwise ErrVersionMismatch is returned and nothing is written.
	ConditionalUpdate(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	// CountOpenByAssignee counts todo and inProgress tasks per assignee.
	// Users without open tasks are absent from the result.
	CountOpenByAssignee(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error)
}
