package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// SQLiteTaskRepository implements task.Repository using SQLite.
type SQLiteTaskRepository struct {
	taskStore
}

// NewSQLiteTaskRepository creates a new SQLite task repository.
func NewSQLiteTaskRepository(conn database.Connection) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{taskStore: newTaskStore(conn)}
}

// CountOpenByAssignee expands the id and status lists into IN clauses.
func (r *SQLiteTaskRepository) CountOpenByAssignee(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]int{}, nil
	}
	statuses := openStatusStrings()

	args := make([]any, 0, len(userIDs)+len(statuses))
	for _, id := range userIDs {
		args = append(args, id)
	}
	for _, s := range statuses {
		args = append(args, s)
	}

	d := database.DriverSQLite
	query := fmt.Sprintf(`
		SELECT assigned_to, COUNT(*)
		FROM tasks
		WHERE assigned_to IN (%s)
		  AND status IN (%s)
		GROUP BY assigned_to`,
		database.Placeholders(d, 1, len(userIDs)),
		database.Placeholders(d, len(userIDs)+1, len(statuses)),
	)

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count open tasks: %w", err)
	}
	return scanCounts(rows)
}

var _ task.Repository = (*SQLiteTaskRepository)(nil)
