package services_test

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAssignmentBalancer_SelectAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user(t, "first")
	u2 := f.user(t, "second")
	u3 := f.user(t, "third")

	// Open counts {2, 0, 1}; completed work does not count.
	f.assignedTask(t, "a", u1, u1, task.StatusTodo)
	f.assignedTask(t, "b", u1, u1, task.StatusInProgress)
	f.assignedTask(t, "c", u1, u3, task.StatusTodo)
	f.assignedTask(t, "d", u1, u2, task.StatusCompleted)
	target := f.task(t, "target", u1)

	got, err := f.balancer.SelectAssignee(ctx, target.ID())
	require.NoError(t, err)
	assert.Equal(t, u2.ID, got.ID)

	again, err := f.balancer.SelectAssignee(ctx, target.ID())
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
}

func TestAssignmentBalancer_TiesGoToEarliestRegistered(t *testing.T) {
	f := newFixture(t)
	u1 := f.user(t, "first")
	f.user(t, "second")
	target := f.task(t, "target", u1)

	got, err := f.balancer.SelectAssignee(context.Background(), target.ID())
	require.NoError(t, err)
	assert.Equal(t, u1.ID, got.ID)
}

func TestAssignmentBalancer_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.balancer.SelectAssignee(context.Background(), uuid.New())
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestAssignmentBalancer_NoEligibleUsers(t *testing.T) {
	tasks := new(mockTaskRepo)
	id := uuid.New()
	tasks.On("FindByID", mock.Anything, id).Return(storedTask(id, "lonely", 1), nil)

	b := services.NewAssignmentBalancer(tasks, staticDirectory{}, nil, nil, observability.DiscardLogger())
	_, err := b.SelectAssignee(context.Background(), id)
	assert.ErrorIs(t, err, services.ErrNoEligibleUsers)
	tasks.AssertNotCalled(t, "CountOpenByAssignee", mock.Anything, mock.Anything)
}

func TestAssignmentBalancer_SmartAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	f.assignedTask(t, "busy", alice, alice, task.StatusTodo)
	target := f.assignedTask(t, "target", alice, alice, task.StatusTodo)

	out, err := f.balancer.SmartAssign(ctx, target.ID(), alice.ID)
	require.NoError(t, err)
	require.True(t, out.Applied)
	require.NotNil(t, out.Task.AssignedTo())
	assert.Equal(t, bob.ID, *out.Task.AssignedTo())
	assert.Equal(t, 3, out.Task.Version())

	history, err := f.activity.History(ctx, target.ID(), 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	entry := history[0]
	assert.Equal(t, activity.ActionSmartAssigned, entry.Action)
	assert.Equal(t, "Smart task reassigned from alice to bob", entry.Details)
	require.NotNil(t, entry.Change)
	assert.Equal(t, task.FieldAssignedTo, entry.Change.Field)
	assert.Equal(t, "alice", *entry.Change.OldValue)
	assert.Equal(t, "bob", *entry.Change.NewValue)
	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricSmartAssignments))
}

func TestAssignmentBalancer_SmartAssignUnassignedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	target := f.task(t, "fresh", alice)

	_, err := f.balancer.SmartAssign(ctx, target.ID(), alice.ID)
	require.NoError(t, err)

	history, err := f.activity.History(ctx, target.ID(), 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Smart task assigned to alice", history[0].Details)
	assert.Nil(t, history[0].Change.OldValue)
}

func TestLeastLoaded_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		counts := rapid.SliceOfN(rapid.IntRange(0, 10), 1, 25).Draw(t, "counts")
		candidates := make([]services.Candidate, len(counts))
		for i, c := range counts {
			candidates[i] = services.Candidate{User: &user.User{ID: uuid.New()}, OpenTaskCount: c}
		}

		got := services.LeastLoaded(candidates)

		first := -1
		for i, c := range candidates {
			if c.OpenTaskCount < got.OpenTaskCount {
				t.Fatalf("candidate %d has %d open tasks, fewer than the selected %d", i, c.OpenTaskCount, got.OpenTaskCount)
			}
			if first < 0 && c.OpenTaskCount == got.OpenTaskCount {
				first = i
			}
		}
		if candidates[first].User.ID != got.User.ID {
			t.Fatalf("tie not broken by enumeration order: want index %d", first)
		}
		if again := services.LeastLoaded(candidates); again.User.ID != got.User.ID {
			t.Fatalf("selection is not stable")
		}
	})
}
