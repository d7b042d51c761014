// Package persistence implements the board repositories on the shared
// database connection. Postgres runs on pgx, local mode on modernc SQLite.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const taskColumns = `id, title, description, status, priority, assigned_to, created_by,
	last_updated_by, version, created_at, updated_at`

// taskStore holds the statements both backends share.
type taskStore struct {
	conn        database.Connection
	findByID    string
	findAll     string
	titleExists string
	exists      string
	insert      string
	update      string
	remove      string
}

func newTaskStore(conn database.Connection) taskStore {
	d := conn.Driver()
	return taskStore{
		conn:        conn,
		findByID:    database.Rebind(d, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`),
		findAll:     database.Rebind(d, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id`),
		titleExists: database.Rebind(d, `SELECT COUNT(*) FROM tasks WHERE title = ? AND id <> ?`),
		exists:      database.Rebind(d, `SELECT COUNT(*) FROM tasks WHERE id = ?`),
		insert: database.Rebind(d, `
			INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		update: database.Rebind(d, `
			UPDATE tasks
			SET title = ?, description = ?, status = ?, priority = ?, assigned_to = ?,
			    last_updated_by = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?
			RETURNING version`),
		remove: database.Rebind(d, `DELETE FROM tasks WHERE id = ?`),
	}
}

func (s taskStore) FindByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	exec := database.ExecutorFromContext(ctx, s.conn)
	t, err := scanTask(exec.QueryRow(ctx, s.findByID, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, task.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task %s: %w", id, err)
	}
	return t, nil
}

func (s taskStore) FindAll(ctx context.Context) ([]*task.Task, error) {
	exec := database.ExecutorFromContext(ctx, s.conn)
	rows, err := exec.Query(ctx, s.findAll)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s taskStore) ExistsWithTitle(ctx context.Context, title string, excludeID uuid.UUID) (bool, error) {
	var n int
	exec := database.ExecutorFromContext(ctx, s.conn)
	if err := exec.QueryRow(ctx, s.titleExists, title, excludeID).Scan(&n); err != nil {
		return false, fmt.Errorf("check title: %w", err)
	}
	return n > 0, nil
}

func (s taskStore) Create(ctx context.Context, t *task.Task) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	_, err := exec.Exec(ctx, s.insert,
		t.ID(),
		t.Title(),
		t.Description(),
		string(t.Status()),
		string(t.Priority()),
		nullID(t.AssignedTo()),
		t.CreatedBy(),
		nullID(t.LastUpdatedBy()),
		t.Version(),
		t.CreatedAt().UTC(),
		t.UpdatedAt().UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return task.NewValidationError(task.FieldTitle, task.RuleUnique, task.ErrDuplicateTitle)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s taskStore) ConditionalUpdate(ctx context.Context, t *task.Task) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	updatedAt := t.UpdatedAt().UTC()

	var version int
	err := exec.QueryRow(ctx, s.update,
		t.Title(),
		t.Description(),
		string(t.Status()),
		string(t.Priority()),
		nullID(t.AssignedTo()),
		nullID(t.LastUpdatedBy()),
		updatedAt,
		t.ID(),
		t.Version(),
	).Scan(&version)
	if err != nil {
		switch {
		case database.IsNoRows(err):
			return s.missReason(ctx, exec, t.ID())
		case database.IsUniqueViolation(err):
			return task.NewValidationError(task.FieldTitle, task.RuleUnique, task.ErrDuplicateTitle)
		}
		return fmt.Errorf("update task %s: %w", t.ID(), err)
	}

	t.SetVersion(version)
	t.SetUpdatedAt(updatedAt)
	return nil
}

// missReason tells a vanished row from a moved version.
func (s taskStore) missReason(ctx context.Context, exec database.Executor, id uuid.UUID) error {
	var n int
	if err := exec.QueryRow(ctx, s.exists, id).Scan(&n); err != nil {
		return fmt.Errorf("check task %s: %w", id, err)
	}
	if n == 0 {
		return task.ErrTaskNotFound
	}
	return task.ErrVersionMismatch
}

func (s taskStore) Delete(ctx context.Context, id uuid.UUID) error {
	exec := database.ExecutorFromContext(ctx, s.conn)
	res, err := exec.Exec(ctx, s.remove, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return task.ErrTaskNotFound
	}
	return nil
}

func scanTask(row database.Row) (*task.Task, error) {
	var (
		p             task.RehydrateParams
		status        string
		priority      string
		assignedTo    uuid.NullUUID
		lastUpdatedBy uuid.NullUUID
		createdAt     time.Time
		updatedAt     time.Time
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&status,
		&priority,
		&assignedTo,
		&p.CreatedBy,
		&lastUpdatedBy,
		&p.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = task.Status(status)
	p.Priority = task.Priority(priority)
	p.AssignedTo = fromNullID(assignedTo)
	p.LastUpdatedBy = fromNullID(lastUpdatedBy)
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return task.Rehydrate(p), nil
}

func scanCounts(rows database.Rows) (map[uuid.UUID]int, error) {
	defer rows.Close()
	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			id uuid.UUID
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan open count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func nullID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

func fromNullID(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func openStatusStrings() []string {
	out := make([]string, len(task.OpenStatuses))
	for i, s := range task.OpenStatuses {
		out[i] = string(s)
	}
	return out
}
