package task_test

import (
	"encoding/json"
	"testing"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) (task.Fields, error) {
	t.Helper()
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return task.DecodeFields(raw)
}

func TestDecodeFields(t *testing.T) {
	id := uuid.New()
	f, err := decode(t, `{"title":"B","status":"inProgress","priority":"high","assignedTo":"`+id.String()+`","version":3,"_id":"x"}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "status", "priority", "assignedTo"}, f.Names())
	assert.Equal(t, "B", *f.Title)
	assert.Equal(t, task.StatusInProgress, *f.Status)
	assert.Equal(t, task.PriorityHigh, *f.Priority)
	assert.Equal(t, id, *f.AssignedTo)
}

func TestDecodeFields_Unassign(t *testing.T) {
	for _, body := range []string{`{"assignedTo":null}`, `{"assignedTo":""}`} {
		f, err := decode(t, body)
		require.NoError(t, err)
		assert.True(t, f.Unassign, body)
		assert.Nil(t, f.AssignedTo)
		assert.Equal(t, []string{"assignedTo"}, f.Names())
	}
}

func TestDecodeFields_Errors(t *testing.T) {
	tests := []struct {
		body    string
		wantErr error
		field   string
	}{
		{`{"color":"red"}`, task.ErrUnknownField, "color"},
		{`{"status":"done"}`, task.ErrInvalidStatus, "status"},
		{`{"priority":"urgent"}`, task.ErrInvalidPriority, "priority"},
		{`{"title":42}`, task.ErrMalformedPayload, "title"},
		{`{"assignedTo":"not-a-uuid"}`, task.ErrMalformedPayload, "assignedTo"},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			_, err := decode(t, tt.body)
			require.ErrorIs(t, err, tt.wantErr)
			var verr *task.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestFields_Only(t *testing.T) {
	id := uuid.New()
	f := task.Fields{Title: strPtr("T"), Description: strPtr("D"), AssignedTo: &id}

	only := f.Only(task.FieldTitle, task.FieldAssignedTo)
	assert.Equal(t, []string{"title", "assignedTo"}, only.Names())
	assert.Nil(t, only.Description)
	assert.True(t, task.Fields{}.IsEmpty())
}

func TestFields_MarshalJSON(t *testing.T) {
	st := task.StatusCompleted
	b, err := json.Marshal(task.Fields{Status: &st, Unassign: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"completed","assignedTo":null}`, string(b))
}

func TestDiff(t *testing.T) {
	tk := newTask(t, "B")
	assignee := uuid.New()

	conflicts := task.Diff(tk, task.Fields{
		Title:       strPtr("C"),
		Description: strPtr("desc"),
		AssignedTo:  &assignee,
	})

	require.Len(t, conflicts, 2)
	assert.Equal(t, "B", *conflicts["title"].Current)
	assert.Equal(t, "C", *conflicts["title"].Proposed)
	assert.Nil(t, conflicts["assignedTo"].Current)
	assert.Equal(t, assignee.String(), *conflicts["assignedTo"].Proposed)
	assert.NotContains(t, conflicts, "description")
}

func TestDiff_UnassignAgainstUnassigned(t *testing.T) {
	tk := newTask(t, "Free")
	assert.Empty(t, task.Diff(tk, task.Fields{Unassign: true}))
}
