package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type txKey struct{}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestWithUnitOfWork(t *testing.T) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, txKey{}, "tx")

	t.Run("commits on success", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)

		var got context.Context
		err := WithUnitOfWork(ctx, uow, func(c context.Context) error {
			got = c
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, txCtx, got)
		uow.AssertExpectations(t)
	})

	t.Run("rolls back and returns the callback error", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(errors.New("rollback failed"))

		fnErr := errors.New("boom")
		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return fnErr })

		assert.Same(t, fnErr, err)
		uow.AssertNotCalled(t, "Commit", mock.Anything)
	})

	t.Run("wraps begin failure", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		beginErr := errors.New("no connection")
		uow.On("Begin", ctx).Return(ctx, beginErr)

		called := false
		err := WithUnitOfWork(ctx, uow, func(context.Context) error {
			called = true
			return nil
		})

		assert.ErrorIs(t, err, beginErr)
		assert.False(t, called)
	})

	t.Run("wraps commit failure", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		commitErr := errors.New("serialization failure")
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(commitErr)

		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return nil })

		assert.ErrorIs(t, err, commitErr)
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		uow := new(mockUnitOfWork)
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)

		assert.Panics(t, func() {
			_ = WithUnitOfWork(ctx, uow, func(context.Context) error { panic("bad") })
		})
		uow.AssertCalled(t, "Rollback", txCtx)
	})
}

func TestInUnitOfWork(t *testing.T) {
	ctx := context.Background()
	uow := new(mockUnitOfWork)
	uow.On("Begin", ctx).Return(ctx, nil)
	uow.On("Commit", ctx).Return(nil)

	n, err := InUnitOfWork(ctx, uow, func(context.Context) (int, error) { return 42, nil })

	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
