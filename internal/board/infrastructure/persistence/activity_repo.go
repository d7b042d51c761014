package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const activitySelect = `
	SELECT l.id, l.task_id, l.action, l.performed_by, l.change_field, l.change_old, l.change_new,
	       l.details, l.before_state, l.after_state, l.created_at,
	       COALESCE(u.name, ''), COALESCE(t.title, '')
	FROM task_logs l
	LEFT JOIN users u ON u.id = l.performed_by
	LEFT JOIN tasks t ON t.id = l.task_id`

// SQLActivityRepository implements activity.Repository on either backend.
type SQLActivityRepository struct {
	conn    database.Connection
	insert  string
	history string
	byActor string
	recent  string
}

// NewSQLActivityRepository creates an audit log repository on conn.
func NewSQLActivityRepository(conn database.Connection) *SQLActivityRepository {
	d := conn.Driver()
	return &SQLActivityRepository{
		conn: conn,
		insert: database.Rebind(d, `
			INSERT INTO task_logs (id, task_id, action, performed_by, change_field, change_old, change_new,
			                       details, before_state, after_state, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		history: database.Rebind(d, activitySelect+` WHERE l.task_id = ? ORDER BY l.created_at DESC, l.id LIMIT ?`),
		byActor: database.Rebind(d, activitySelect+` WHERE l.performed_by = ? ORDER BY l.created_at DESC, l.id LIMIT ?`),
		recent:  database.Rebind(d, activitySelect+` ORDER BY l.created_at DESC, l.id LIMIT ?`),
	}
}

func (r *SQLActivityRepository) Record(ctx context.Context, e *activity.Entry) error {
	before, err := encodeSnapshot(e.Before)
	if err != nil {
		return err
	}
	after, err := encodeSnapshot(e.After)
	if err != nil {
		return err
	}

	var field, oldValue, newValue any
	if e.Change != nil {
		field = e.Change.Field
		oldValue = optString(e.Change.OldValue)
		newValue = optString(e.Change.NewValue)
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err = exec.Exec(ctx, r.insert,
		e.ID, e.TaskID, string(e.Action), e.PerformedBy,
		field, oldValue, newValue,
		e.Details, before, after, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func (r *SQLActivityRepository) History(ctx context.Context, taskID uuid.UUID, limit int) ([]*activity.Entry, error) {
	return r.query(ctx, r.history, taskID, pageSize(limit, activity.DefaultHistoryLimit))
}

func (r *SQLActivityRepository) ByActor(ctx context.Context, userID uuid.UUID, limit int) ([]*activity.Entry, error) {
	return r.query(ctx, r.byActor, userID, pageSize(limit, activity.DefaultHistoryLimit))
}

func (r *SQLActivityRepository) Recent(ctx context.Context, limit int) ([]*activity.Entry, error) {
	return r.query(ctx, r.recent, pageSize(limit, activity.DefaultRecentLimit))
}

func (r *SQLActivityRepository) query(ctx context.Context, query string, args ...any) ([]*activity.Entry, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	entries := []*activity.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row database.Row) (*activity.Entry, error) {
	var (
		e         activity.Entry
		action    string
		field     *string
		oldValue  *string
		newValue  *string
		before    []byte
		after     []byte
		createdAt time.Time
	)
	err := row.Scan(
		&e.ID, &e.TaskID, &action, &e.PerformedBy,
		&field, &oldValue, &newValue,
		&e.Details, &before, &after, &createdAt,
		&e.PerformerName, &e.TaskTitle,
	)
	if err != nil {
		return nil, err
	}
	e.Action = activity.Action(action)
	e.CreatedAt = createdAt.UTC()
	if field != nil {
		e.Change = &activity.Change{Field: *field, OldValue: oldValue, NewValue: newValue}
	}
	if e.Before, err = decodeSnapshot(before); err != nil {
		return nil, err
	}
	if e.After, err = decodeSnapshot(after); err != nil {
		return nil, err
	}
	if e.TaskTitle == "" {
		switch {
		case e.After != nil:
			e.TaskTitle = e.After.Title
		case e.Before != nil:
			e.TaskTitle = e.Before.Title
		}
	}
	return &e, nil
}

// encodeSnapshot returns the JSON text, or nil for SQL NULL.
func encodeSnapshot(s *task.Snapshot) (any, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return string(b), nil
}

func decodeSnapshot(b []byte) (*task.Snapshot, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s task.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func pageSize(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

var _ activity.Repository = (*SQLActivityRepository)(nil)
