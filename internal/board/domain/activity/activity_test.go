package activity

import (
	"testing"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetails(t *testing.T) {
	assert.Equal(t, `Task "Ship it" created`, CreatedDetails("Ship it"))
	assert.Equal(t, `Task "Ship it" deleted`, DeletedDetails("Ship it"))
	assert.Equal(t, `Status changed from "todo" to "inProgress"`, StatusDetails(task.StatusTodo, task.StatusInProgress))
	assert.Equal(t, "Updated fields: title, description", UpdatedDetails([]string{"title", "description"}))
}

func TestAssignmentDetails(t *testing.T) {
	tests := []struct {
		oldName, newName string
		smart            bool
		want             string
	}{
		{"", "Bob", false, "Task assigned to Bob"},
		{"Alice", "Bob", false, "Task reassigned from Alice to Bob"},
		{"Alice", "", false, "Task unassigned from Alice"},
		{"", "Bob", true, "Smart task assigned to Bob"},
		{"Alice", "Bob", true, "Smart task reassigned from Alice to Bob"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignmentDetails(tt.oldName, tt.newName, tt.smart))
		})
	}
}

func TestNewEntry_WithSnapshots(t *testing.T) {
	tk, err := task.NewTask("Audit me", "", "", uuid.New())
	require.NoError(t, err)
	actor := uuid.New()
	status := task.StatusCompleted
	next, err := tk.Apply(task.Fields{Status: &status}, actor)
	require.NoError(t, err)

	old, neu := "todo", "completed"
	e := NewEntry(tk.ID(), ActionStatusChanged, actor, StatusDetails(tk.Status(), next.Status())).
		WithChange(task.FieldStatus, &old, &neu).
		WithSnapshots(tk, next)

	assert.Equal(t, tk.ID(), e.TaskID)
	assert.Equal(t, actor, e.PerformedBy)
	require.NotNil(t, e.Before)
	require.NotNil(t, e.After)
	assert.Equal(t, task.StatusTodo, e.Before.Status)
	assert.Equal(t, task.StatusCompleted, e.After.Status)
	assert.Equal(t, "status", e.Change.Field)
	assert.False(t, e.CreatedAt.IsZero())
}
