package app

import (
	"fmt"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/activity"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/persistence"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/outbox"
	"github.com/sony/gobreaker/v2"
)

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn    database.Connection
	driver  database.Driver
	breaker *gobreaker.CircuitBreaker[any]
}

// NewRepositoryFactory creates a new repository factory. When breaker is
// set, the task and user repositories share it.
func NewRepositoryFactory(conn database.Connection, breaker *gobreaker.CircuitBreaker[any]) *RepositoryFactory {
	return &RepositoryFactory{
		conn:    conn,
		driver:  conn.Driver(),
		breaker: breaker,
	}
}

// TaskRepository creates a task repository for the configured driver.
func (f *RepositoryFactory) TaskRepository() (task.Repository, error) {
	var repo task.Repository
	switch f.driver {
	case database.DriverPostgres:
		repo = persistence.NewPostgresTaskRepository(f.conn)
	case database.DriverSQLite:
		repo = persistence.NewSQLiteTaskRepository(f.conn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
	if f.breaker != nil {
		repo = persistence.NewBreakerTaskRepository(repo, f.breaker)
	}
	return repo, nil
}

// UserRepository creates a user repository. The SQL is portable, so both
// drivers share one implementation.
func (f *RepositoryFactory) UserRepository() user.Repository {
	var repo user.Repository = persistence.NewSQLUserRepository(f.conn)
	if f.breaker != nil {
		repo = persistence.NewBreakerUserRepository(repo, f.breaker)
	}
	return repo
}

// ActivityRepository creates the audit log repository.
func (f *RepositoryFactory) ActivityRepository() activity.Repository {
	return persistence.NewSQLActivityRepository(f.conn)
}

// OutboxRepository creates the outbox repository.
func (f *RepositoryFactory) OutboxRepository() outbox.Repository {
	return outbox.NewSQLRepository(f.conn)
}

// UnitOfWork creates a unit of work on the connection.
func (f *RepositoryFactory) UnitOfWork() *database.UnitOfWork {
	return database.NewUnitOfWork(f.conn)
}

// Driver returns the database driver type.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// Connection returns the underlying database connection.
func (f *RepositoryFactory) Connection() database.Connection {
	return f.conn
}
