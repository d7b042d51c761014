package task

import (
	"time"

	"github.com/felixgeelhaar/taskboard/internal/shared/domain"
	"github.com/google/uuid"
)

// Task is a card on the shared board. Every accepted change bumps its version.
type Task struct {
	domain.BaseAggregateRoot
	title         string
	description   string
	status        Status
	priority      Priority
	assignedTo    *uuid.UUID
	createdBy     uuid.UUID
	lastUpdatedBy *uuid.UUID
}

// NewTask creates a task in the todo column. Title uniqueness is checked by
// the caller against the repository.
func NewTask(title, description string, priority Priority, createdBy uuid.UUID) (*Task, error) {
	title, err := ValidateTitle(title)
	if err != nil {
		return nil, err
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.IsValid() {
		return nil, NewValidationError(FieldPriority, RuleEnum, ErrInvalidPriority)
	}

	t := &Task{
		BaseAggregateRoot: domain.NewBaseAggregateRoot(),
		title:             title,
		description:       description,
		status:            StatusTodo,
		priority:          priority,
		createdBy:         createdBy,
	}
	t.AddDomainEvent(NewTaskCreated(t))
	return t, nil
}

// RehydrateParams is the persisted state of a task.
type RehydrateParams struct {
	ID            uuid.UUID
	Title         string
	Description   string
	Status        Status
	Priority      Priority
	AssignedTo    *uuid.UUID
	CreatedBy     uuid.UUID
	LastUpdatedBy *uuid.UUID
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Rehydrate recreates a task from storage without raising events.
func Rehydrate(p RehydrateParams) *Task {
	return &Task{
		BaseAggregateRoot: domain.RehydrateBaseAggregateRoot(p.ID, p.CreatedAt, p.UpdatedAt, p.Version),
		title:             p.Title,
		description:       p.Description,
		status:            p.Status,
		priority:          p.Priority,
		assignedTo:        p.AssignedTo,
		createdBy:         p.CreatedBy,
		lastUpdatedBy:     p.LastUpdatedBy,
	}
}

func (t *Task) Title() string             { return t.title }
func (t *Task) Description() string       { return t.description }
func (t *Task) Status() Status            { return t.status }
func (t *Task) Priority() Priority        { return t.priority }
func (t *Task) AssignedTo() *uuid.UUID    { return t.assignedTo }
func (t *Task) CreatedBy() uuid.UUID      { return t.createdBy }
func (t *Task) LastUpdatedBy() *uuid.UUID { return t.lastUpdatedBy }
func (t *Task) IsOpen() bool              { return t.status.IsOpen() }

// Clone returns an independent copy.
func (t *Task) Clone() *Task {
	c := *t
	c.BaseAggregateRoot = t.CopyBase()
	c.assignedTo = copyID(t.assignedTo)
	c.lastUpdatedBy = copyID(t.lastUpdatedBy)
	return &c
}

// Apply validates fields and returns a copy of the task with them applied.
// The receiver is left untouched so a failed write never leaks state. The
// version is not changed here; the repository assigns it on a successful
// conditional write.
func (t *Task) Apply(fields Fields, performedBy uuid.UUID) (*Task, error) {
	next := t.Clone()
	next.ClearDomainEvents()

	if fields.Title != nil {
		title, err := ValidateTitle(*fields.Title)
		if err != nil {
			return nil, err
		}
		next.title = title
	}
	if fields.Description != nil {
		next.description = *fields.Description
	}
	if fields.Status != nil {
		if !fields.Status.IsValid() {
			return nil, NewValidationError(FieldStatus, RuleEnum, ErrInvalidStatus)
		}
		next.status = *fields.Status
	}
	if fields.Priority != nil {
		if !fields.Priority.IsValid() {
			return nil, NewValidationError(FieldPriority, RuleEnum, ErrInvalidPriority)
		}
		next.priority = *fields.Priority
	}
	switch {
	case fields.Unassign:
		next.assignedTo = nil
	case fields.AssignedTo != nil:
		next.assignedTo = copyID(fields.AssignedTo)
	}

	actor := performedBy
	next.lastUpdatedBy = &actor
	next.Touch()

	next.AddDomainEvent(NewTaskUpdated(next, fields))
	if next.status != t.status {
		next.AddDomainEvent(NewTaskStatusChanged(next, t.status))
	}
	if !sameID(next.assignedTo, t.assignedTo) {
		next.AddDomainEvent(NewTaskAssigned(next, t.assignedTo))
	}
	return next, nil
}

// MarkDeleted records the deletion event. The repository removes the row.
func (t *Task) MarkDeleted(performedBy uuid.UUID) {
	t.AddDomainEvent(NewTaskDeleted(t, performedBy))
}

// MarkResolved records that a conflict on this task was settled.
func (t *Task) MarkResolved(strategy string, resolvedBy uuid.UUID) {
	t.AddDomainEvent(NewConflictResolved(t, strategy, resolvedBy))
}

// Snapshot is the audited view of a task.
type Snapshot struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	AssignedTo  *uuid.UUID `json:"assignedTo"`
}

// Snapshot captures the audited fields.
func (t *Task) Snapshot() Snapshot {
	return Snapshot{
		Title:       t.title,
		Description: t.description,
		Status:      t.status,
		AssignedTo:  copyID(t.assignedTo),
	}
}

func (t *Task) value(name string) *string {
	switch name {
	case FieldTitle:
		return ptr(t.title)
	case FieldDescription:
		return ptr(t.description)
	case FieldStatus:
		return ptr(string(t.status))
	case FieldPriority:
		return ptr(string(t.priority))
	case FieldAssignedTo:
		if t.assignedTo == nil {
			return nil
		}
		return ptr(t.assignedTo.String())
	}
	return nil
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
