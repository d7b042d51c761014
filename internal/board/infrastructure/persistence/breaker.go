package persistence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the record store circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive store failures that opens
	// the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// DefaultBreakerConfig returns the defaults used by the server.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second}
}

// NewStoreBreaker creates the breaker shared by the record store decorators.
// Business outcomes (not found, version mismatch, validation) count as
// successes; only store failures trip it.
func NewStoreBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[any] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: isStoreSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("record store circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

func isStoreSuccess(err error) bool {
	if err == nil {
		return true
	}
	var verr *task.ValidationError
	return errors.Is(err, task.ErrTaskNotFound) ||
		errors.Is(err, task.ErrVersionMismatch) ||
		errors.Is(err, user.ErrUserNotFound) ||
		errors.Is(err, user.ErrDuplicateEmail) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &verr)
}

func run[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

func guard(cb *gobreaker.CircuitBreaker[any], fn func() error) error {
	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// BreakerTaskRepository guards a task.Repository with a circuit breaker.
// While open every call fails fast with gobreaker.ErrOpenState.
type BreakerTaskRepository struct {
	next task.Repository
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerTaskRepository wraps next.
func NewBreakerTaskRepository(next task.Repository, cb *gobreaker.CircuitBreaker[any]) *BreakerTaskRepository {
	return &BreakerTaskRepository{next: next, cb: cb}
}

func (r *BreakerTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	return run(r.cb, func() (*task.Task, error) { return r.next.FindByID(ctx, id) })
}

func (r *BreakerTaskRepository) FindAll(ctx context.Context) ([]*task.Task, error) {
	return run(r.cb, func() ([]*task.Task, error) { return r.next.FindAll(ctx) })
}

func (r *BreakerTaskRepository) ExistsWithTitle(ctx context.Context, title string, excludeID uuid.UUID) (bool, error) {
	return run(r.cb, func() (bool, error) { return r.next.ExistsWithTitle(ctx, title, excludeID) })
}

func (r *BreakerTaskRepository) Create(ctx context.Context, t *task.Task) error {
	return guard(r.cb, func() error { return r.next.Create(ctx, t) })
}

func (r *BreakerTaskRepository) ConditionalUpdate(ctx context.Context, t *task.Task) error {
	return guard(r.cb, func() error { return r.next.ConditionalUpdate(ctx, t) })
}

func (r *BreakerTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return guard(r.cb, func() error { return r.next.Delete(ctx, id) })
}

func (r *BreakerTaskRepository) CountOpenByAssignee(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return run(r.cb, func() (map[uuid.UUID]int, error) { return r.next.CountOpenByAssignee(ctx, userIDs) })
}

// BreakerUserRepository guards a user.Repository with a circuit breaker.
type BreakerUserRepository struct {
	next user.Repository
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerUserRepository wraps next.
func NewBreakerUserRepository(next user.Repository, cb *gobreaker.CircuitBreaker[any]) *BreakerUserRepository {
	return &BreakerUserRepository{next: next, cb: cb}
}

func (r *BreakerUserRepository) Create(ctx context.Context, u *user.User) error {
	return guard(r.cb, func() error { return r.next.Create(ctx, u) })
}

func (r *BreakerUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return run(r.cb, func() (*user.User, error) { return r.next.FindByID(ctx, id) })
}

func (r *BreakerUserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return run(r.cb, func() (*user.User, error) { return r.next.FindByEmail(ctx, email) })
}

func (r *BreakerUserRepository) List(ctx context.Context) ([]*user.User, error) {
	return run(r.cb, func() ([]*user.User, error) { return r.next.List(ctx) })
}

var (
	_ task.Repository = (*BreakerTaskRepository)(nil)
	_ user.Repository = (*BreakerUserRepository)(nil)
)
