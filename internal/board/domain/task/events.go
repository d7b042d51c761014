package task

import (
	"github.com/felixgeelhaar/taskboard/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateType = "Task"

	RoutingKeyCreated          = "board.task.created"
	RoutingKeyUpdated          = "board.task.updated"
	RoutingKeyStatusChanged    = "board.task.status_changed"
	RoutingKeyAssigned         = "board.task.assigned"
	RoutingKeyDeleted          = "board.task.deleted"
	RoutingKeyConflictResolved = "board.task.conflict_resolved"
)

// TaskCreated is emitted when a task is added to the board.
type TaskCreated struct {
	domain.BaseEvent
	Title     string    `json:"title"`
	Priority  Priority  `json:"priority"`
	CreatedBy uuid.UUID `json:"created_by"`
}

func NewTaskCreated(t *Task) *TaskCreated {
	return &TaskCreated{
		BaseEvent: domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyCreated),
		Title:     t.title,
		Priority:  t.priority,
		CreatedBy: t.createdBy,
	}
}

// TaskUpdated is emitted for every applied change.
type TaskUpdated struct {
	domain.BaseEvent
	Fields  Fields `json:"fields"`
	Version int    `json:"base_version"`
}

func NewTaskUpdated(t *Task, fields Fields) *TaskUpdated {
	return &TaskUpdated{
		BaseEvent: domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyUpdated),
		Fields:    fields,
		Version:   t.Version(),
	}
}

// TaskStatusChanged is emitted when a task moves column.
type TaskStatusChanged struct {
	domain.BaseEvent
	From Status `json:"from"`
	To   Status `json:"to"`
}

func NewTaskStatusChanged(t *Task, from Status) *TaskStatusChanged {
	return &TaskStatusChanged{
		BaseEvent: domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyStatusChanged),
		From:      from,
		To:        t.status,
	}
}

// TaskAssigned is emitted when the assignee changes, including unassignment.
type TaskAssigned struct {
	domain.BaseEvent
	From *uuid.UUID `json:"from"`
	To   *uuid.UUID `json:"to"`
}

func NewTaskAssigned(t *Task, from *uuid.UUID) *TaskAssigned {
	return &TaskAssigned{
		BaseEvent: domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyAssigned),
		From:      copyID(from),
		To:        copyID(t.assignedTo),
	}
}

// TaskDeleted is emitted when a task is removed.
type TaskDeleted struct {
	domain.BaseEvent
	Title     string    `json:"title"`
	DeletedBy uuid.UUID `json:"deleted_by"`
}

func NewTaskDeleted(t *Task, by uuid.UUID) *TaskDeleted {
	return &TaskDeleted{
		BaseEvent: domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyDeleted),
		Title:     t.title,
		DeletedBy: by,
	}
}

// ConflictResolved is emitted when a user settles a version conflict.
type ConflictResolved struct {
	domain.BaseEvent
	Strategy   string    `json:"strategy"`
	ResolvedBy uuid.UUID `json:"resolved_by"`
}

func NewConflictResolved(t *Task, strategy string, by uuid.UUID) *ConflictResolved {
	return &ConflictResolved{
		BaseEvent:  domain.NewBaseEvent(t.ID(), AggregateType, RoutingKeyConflictResolved),
		Strategy:   strategy,
		ResolvedBy: by,
	}
}
