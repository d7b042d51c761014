package services_test

import (
	"context"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockTaskRepo is a mock implementation of task.Repository.
type mockTaskRepo struct {
	mock.Mock
}

func (m *mockTaskRepo) FindByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *mockTaskRepo) FindAll(ctx context.Context) ([]*task.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *mockTaskRepo) ExistsWithTitle(ctx context.Context, title string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, title, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTaskRepo) Create(ctx context.Context, t *task.Task) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTaskRepo) ConditionalUpdate(ctx context.Context, t *task.Task) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockTaskRepo) CountOpenByAssignee(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}

// mockActivityRepo is a mock implementation of activity.Repository.
type mockActivityRepo struct {
	mock.Mock
}

func (m *mockActivityRepo) Record(ctx context.Context, entry *activity.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockActivityRepo) History(ctx context.Context, taskID uuid.UUID, limit int) ([]*activity.Entry, error) {
	args := m.Called(ctx, taskID, limit)
	return args.Get(0).([]*activity.Entry), args.Error(1)
}

func (m *mockActivityRepo) ByActor(ctx context.Context, userID uuid.UUID, limit int) ([]*activity.Entry, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]*activity.Entry), args.Error(1)
}

func (m *mockActivityRepo) Recent(ctx context.Context, limit int) ([]*activity.Entry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*activity.Entry), args.Error(1)
}

// passthroughUnitOfWork runs everything without a transaction.
type passthroughUnitOfWork struct{}

func (passthroughUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (passthroughUnitOfWork) Commit(context.Context) error                       { return nil }
func (passthroughUnitOfWork) Rollback(context.Context) error                     { return nil }

// staticDirectory is a fixed user population.
type staticDirectory []*user.User

func (d staticDirectory) FindByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	for _, u := range d {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (d staticDirectory) List(context.Context) ([]*user.User, error) {
	return d, nil
}
