package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/persistence"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func TestRepositoryFactory_SQLite(t *testing.T) {
	conn := openSQLite(t)

	t.Run("plain", func(t *testing.T) {
		f := NewRepositoryFactory(conn, nil)
		repo, err := f.TaskRepository()
		require.NoError(t, err)
		assert.IsType(t, &persistence.SQLiteTaskRepository{}, repo)
		assert.IsType(t, &persistence.SQLUserRepository{}, f.UserRepository())
		assert.Equal(t, database.DriverSQLite, f.Driver())
		assert.Same(t, conn, f.Connection())
	})

	t.Run("behind a breaker", func(t *testing.T) {
		cb := persistence.NewStoreBreaker("test", persistence.DefaultBreakerConfig(), observability.DiscardLogger())
		f := NewRepositoryFactory(conn, cb)
		repo, err := f.TaskRepository()
		require.NoError(t, err)
		assert.IsType(t, &persistence.BreakerTaskRepository{}, repo)
		assert.IsType(t, &persistence.BreakerUserRepository{}, f.UserRepository())

		all, err := repo.FindAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
