package persistence_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/persistence"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/migrations"
	"github.com/stretchr/testify/require"
)

// openSQLite creates a migrated board database in a temp directory.
func openSQLite(t *testing.T) database.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := database.Open(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "board.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn, nil))
	return conn
}

// createUser registers a user; offset spaces out registration times.
func createUser(t *testing.T, conn database.Connection, name string, offset time.Duration) *user.User {
	t.Helper()
	u, err := user.NewUser(name, name+"@example.com")
	require.NoError(t, err)
	u.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset)
	require.NoError(t, persistence.NewSQLUserRepository(conn).Create(context.Background(), u))
	return u
}

func createTask(t *testing.T, repo task.Repository, title string, creator *user.User) *task.Task {
	t.Helper()
	tk, err := task.NewTask(title, "", task.PriorityMedium, creator.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tk))
	tk.ClearDomainEvents()
	return tk
}
