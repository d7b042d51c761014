package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresTaskRepository implements task.Repository using PostgreSQL.
type PostgresTaskRepository struct {
	taskStore
}

// NewPostgresTaskRepository creates a new PostgreSQL task repository.
func NewPostgresTaskRepository(conn database.Connection) *PostgresTaskRepository {
	return &PostgresTaskRepository{taskStore: newTaskStore(conn)}
}

// CountOpenByAssignee counts open tasks with array parameters so the
// statement is the same for any number of users.
func (r *PostgresTaskRepository) CountOpenByAssignee(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]int{}, nil
	}
	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT assigned_to, COUNT(*)
		FROM tasks
		WHERE assigned_to = ANY($1::uuid[])
		  AND status = ANY($2::text[])
		GROUP BY assigned_to
	`
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, pq.Array(ids), pq.Array(openStatusStrings()))
	if err != nil {
		return nil, fmt.Errorf("count open tasks: %w", err)
	}
	return scanCounts(rows)
}

var _ task.Repository = (*PostgresTaskRepository)(nil)
