package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/persistence"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	conn     database.Connection
	tasks    task.Repository
	users    user.Repository
	activity *persistence.SQLActivityRepository
	outbox   *outbox.SQLRepository
	metrics  *observability.InMemoryMetrics
	resolver *services.ConflictResolver
	balancer *services.AssignmentBalancer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	conn, err := database.Open(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "board.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn, nil))

	f := &fixture{
		conn:     conn,
		tasks:    persistence.NewSQLiteTaskRepository(conn),
		users:    persistence.NewSQLUserRepository(conn),
		activity: persistence.NewSQLActivityRepository(conn),
		outbox:   outbox.NewSQLRepository(conn),
		metrics:  observability.NewInMemoryMetrics(),
	}
	f.resolver = services.NewConflictResolver(
		f.tasks, f.users, f.activity, f.outbox, database.NewUnitOfWork(conn),
		services.DefaultResolverConfig(), f.metrics, observability.DiscardLogger(),
	)
	f.balancer = services.NewAssignmentBalancer(f.tasks, f.users, f.resolver, f.metrics, observability.DiscardLogger())
	return f
}

// user registers a user; users registered later sort later.
func (f *fixture) user(t *testing.T, name string) *user.User {
	t.Helper()
	u, err := user.NewUser(name, name+"@example.com")
	require.NoError(t, err)
	n, err := f.users.List(context.Background())
	require.NoError(t, err)
	u.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(n)) * time.Minute)
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) task(t *testing.T, title string, creator *user.User) *task.Task {
	t.Helper()
	tk, err := task.NewTask(title, "", task.PriorityMedium, creator.ID)
	require.NoError(t, err)
	require.NoError(t, f.tasks.Create(context.Background(), tk))
	tk.ClearDomainEvents()
	return tk
}

func (f *fixture) assignedTask(t *testing.T, title string, creator, assignee *user.User, status task.Status) *task.Task {
	t.Helper()
	tk := f.task(t, title, creator)
	id := assignee.ID
	_, err := f.resolver.Update(context.Background(), services.UpdateRequest{
		TaskID:      tk.ID(),
		Fields:      task.Fields{AssignedTo: &id, Status: &status},
		PerformedBy: creator.ID,
	})
	require.NoError(t, err)
	return tk
}

func (f *fixture) pendingOutbox(t *testing.T) []*outbox.Message {
	t.Helper()
	msgs, err := f.outbox.Pending(context.Background(), time.Now().Add(time.Hour), 1000)
	require.NoError(t, err)
	return msgs
}

func strp(s string) *string { return &s }

func intp(i int) *int { return &i }

func statusp(s task.Status) *task.Status { return &s }
