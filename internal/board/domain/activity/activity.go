// Package activity is the audit trail of applied board changes.
package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/google/uuid"
)

// Action classifies an audit entry.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionStatusChanged Action = "status_changed"
	ActionAssigned      Action = "assigned"
	ActionUnassigned    Action = "unassigned"
	ActionDeleted       Action = "deleted"
	ActionSmartAssigned Action = "smart_assigned"
)

// Default page sizes.
const (
	DefaultHistoryLimit = 50
	DefaultRecentLimit  = 20
)

// Change is the old and new value of a field. Multi-field updates join the
// field names with commas.
type Change struct {
	Field    string  `json:"field"`
	OldValue *string `json:"oldValue"`
	NewValue *string `json:"newValue"`
}

// Entry is one audit record.
type Entry struct {
	ID          uuid.UUID      `json:"id"`
	TaskID      uuid.UUID      `json:"taskId"`
	Action      Action         `json:"action"`
	PerformedBy uuid.UUID      `json:"performedBy"`
	Change      *Change        `json:"changes,omitempty"`
	Details     string         `json:"details"`
	Before      *task.Snapshot `json:"before,omitempty"`
	After       *task.Snapshot `json:"taskSnapshot,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`

	// Filled by read queries.
	PerformerName string `json:"performerName,omitempty"`
	TaskTitle     string `json:"taskTitle,omitempty"`
}

// NewEntry creates an entry stamped with the current time.
func NewEntry(taskID uuid.UUID, action Action, performedBy uuid.UUID, details string) *Entry {
	return &Entry{
		ID:          uuid.New(),
		TaskID:      taskID,
		Action:      action,
		PerformedBy: performedBy,
		Details:     details,
		CreatedAt:   time.Now().UTC(),
	}
}

// WithChange sets the field change.
func (e *Entry) WithChange(field string, oldValue, newValue *string) *Entry {
	e.Change = &Change{Field: field, OldValue: oldValue, NewValue: newValue}
	return e
}

// WithSnapshots records the task before and after the change. Either may be nil.
func (e *Entry) WithSnapshots(before, after *task.Task) *Entry {
	if before != nil {
		s := before.Snapshot()
		e.Before = &s
	}
	if after != nil {
		s := after.Snapshot()
		e.After = &s
	}
	return e
}

// Repository is the write-mostly audit sink.
type Repository interface {
	Record(ctx context.Context, entry *Entry) error
	// History lists entries for a task, newest first.
	History(ctx context.Context, taskID uuid.UUID, limit int) ([]*Entry, error)
	// ByActor lists entries performed by a user, newest first.
	ByActor(ctx context.Context, userID uuid.UUID, limit int) ([]*Entry, error)
	// Recent lists the newest entries across the board.
	Recent(ctx context.Context, limit int) ([]*Entry, error)
}

// CreatedDetails describes a new task.
func CreatedDetails(title string) string {
	return fmt.Sprintf("Task %q created", title)
}

// DeletedDetails describes a removed task.
func DeletedDetails(title string) string {
	return fmt.Sprintf("Task %q deleted", title)
}

// StatusDetails describes a column move.
func StatusDetails(from, to task.Status) string {
	return fmt.Sprintf("Status changed from %q to %q", string(from), string(to))
}

// UpdatedDetails lists the fields an update touched.
func UpdatedDetails(fields []string) string {
	return "Updated fields: " + strings.Join(fields, ", ")
}

// AssignmentDetails describes an assignee change by display name. An empty
// name means nobody.
func AssignmentDetails(oldName, newName string, smart bool) string {
	var details string
	switch {
	case newName == "":
		details = fmt.Sprintf("Task unassigned from %s", oldName)
	case oldName == "":
		details = fmt.Sprintf("Task assigned to %s", newName)
	default:
		details = fmt.Sprintf("Task reassigned from %s to %s", oldName, newName)
	}
	if smart {
		return "Smart " + strings.ToLower(details[:1]) + details[1:]
	}
	return details
}
