package task_test

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTask(t *testing.T, title string) *task.Task {
	t.Helper()
	tk, err := task.NewTask(title, "desc", "", uuid.New())
	require.NoError(t, err)
	tk.ClearDomainEvents()
	return tk
}

func TestNewTask(t *testing.T) {
	creator := uuid.New()
	tk, err := task.NewTask("  Write docs  ", "all of them", task.PriorityHigh, creator)
	require.NoError(t, err)

	assert.Equal(t, "Write docs", tk.Title())
	assert.Equal(t, task.StatusTodo, tk.Status())
	assert.Equal(t, task.PriorityHigh, tk.Priority())
	assert.Equal(t, creator, tk.CreatedBy())
	assert.Equal(t, 1, tk.Version())
	assert.Nil(t, tk.AssignedTo())
	assert.Nil(t, tk.LastUpdatedBy())

	events := tk.DomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, task.RoutingKeyCreated, events[0].RoutingKey())
	assert.Equal(t, tk.ID(), events[0].AggregateID())
}

func TestNewTask_DefaultsPriority(t *testing.T) {
	tk, err := task.NewTask("Something", "", "", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, task.PriorityMedium, tk.Priority())
}

func TestNewTask_Validation(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		priority task.Priority
		wantErr  error
		field    string
		rule     string
	}{
		{"empty title", "   ", "", task.ErrEmptyTitle, task.FieldTitle, task.RuleRequired},
		{"reserved title", "In Progress", "", task.ErrReservedTitle, task.FieldTitle, task.RuleReserved},
		{"reserved compact", " TODO ", "", task.ErrReservedTitle, task.FieldTitle, task.RuleReserved},
		{"bad priority", "Fine", "urgent", task.ErrInvalidPriority, task.FieldPriority, task.RuleEnum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := task.NewTask(tt.title, "", tt.priority, uuid.New())
			require.ErrorIs(t, err, tt.wantErr)

			var verr *task.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.rule, verr.Rule)
		})
	}
}

func TestReservedTitle(t *testing.T) {
	for _, title := range []string{"to do", "In Progress", "COMPLETED", "todo", "InProgress", " to do "} {
		assert.True(t, task.ReservedTitle(title), title)
	}
	for _, title := range []string{"done", "to-do", "in progress soon", ""} {
		assert.False(t, task.ReservedTitle(title), title)
	}
}

func TestApply_LeavesReceiverUntouched(t *testing.T) {
	tk := newTask(t, "Original")
	actor := uuid.New()
	assignee := uuid.New()
	status := task.StatusInProgress

	next, err := tk.Apply(task.Fields{
		Title:      strPtr("Renamed"),
		Status:     &status,
		AssignedTo: &assignee,
	}, actor)
	require.NoError(t, err)

	assert.Equal(t, "Original", tk.Title())
	assert.Equal(t, task.StatusTodo, tk.Status())
	assert.Nil(t, tk.AssignedTo())
	assert.Empty(t, tk.DomainEvents())

	assert.Equal(t, "Renamed", next.Title())
	assert.Equal(t, task.StatusInProgress, next.Status())
	require.NotNil(t, next.AssignedTo())
	assert.Equal(t, assignee, *next.AssignedTo())
	require.NotNil(t, next.LastUpdatedBy())
	assert.Equal(t, actor, *next.LastUpdatedBy())
	assert.Equal(t, tk.Version(), next.Version())

	var keys []string
	for _, e := range next.DomainEvents() {
		keys = append(keys, e.RoutingKey())
	}
	assert.Equal(t, []string{task.RoutingKeyUpdated, task.RoutingKeyStatusChanged, task.RoutingKeyAssigned}, keys)
}

func TestApply_Unassign(t *testing.T) {
	tk := newTask(t, "Owned")
	assignee := uuid.New()
	owned, err := tk.Apply(task.Fields{AssignedTo: &assignee}, uuid.New())
	require.NoError(t, err)

	cleared, err := owned.Apply(task.Fields{Unassign: true}, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedTo())
	assert.NotNil(t, owned.AssignedTo())
}

func TestApply_Validation(t *testing.T) {
	tk := newTask(t, "Valid")
	bad := task.Status("done")

	_, err := tk.Apply(task.Fields{Title: strPtr("completed")}, uuid.New())
	assert.ErrorIs(t, err, task.ErrReservedTitle)

	_, err = tk.Apply(task.Fields{Title: strPtr("")}, uuid.New())
	assert.ErrorIs(t, err, task.ErrEmptyTitle)

	_, err = tk.Apply(task.Fields{Status: &bad}, uuid.New())
	assert.ErrorIs(t, err, task.ErrInvalidStatus)
}

func TestSnapshot(t *testing.T) {
	tk := newTask(t, "Snap")
	s := tk.Snapshot()
	assert.Equal(t, task.Snapshot{Title: "Snap", Description: "desc", Status: task.StatusTodo}, s)
}

func TestMarkDeletedAndResolved(t *testing.T) {
	tk := newTask(t, "Gone")
	actor := uuid.New()
	tk.MarkResolved("overwrite", actor)
	tk.MarkDeleted(actor)

	events := tk.DomainEvents()
	require.Len(t, events, 2)
	resolved, ok := events[0].(*task.ConflictResolved)
	require.True(t, ok)
	assert.Equal(t, "overwrite", resolved.Strategy)
	assert.Equal(t, task.RoutingKeyDeleted, events[1].RoutingKey())
}
