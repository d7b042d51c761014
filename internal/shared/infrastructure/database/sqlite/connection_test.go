package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
)

func openTestConnection(t *testing.T) database.Connection {
	t.Helper()
	conn, err := database.Open(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "board.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Exec(context.Background(), `CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT NOT NULL)`)
	require.NoError(t, err)
	return conn
}

func countNotes(t *testing.T, conn database.Connection) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(context.Background(), `SELECT COUNT(*) FROM notes`).Scan(&n))
	return n
}

func TestOpen(t *testing.T) {
	conn := openTestConnection(t)

	assert.NoError(t, conn.Ping(context.Background()))
	assert.Equal(t, database.DriverSQLite, conn.Driver())
}

func TestOpen_InMemory(t *testing.T) {
	conn, err := Open(context.Background(), database.Config{SQLitePath: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(context.Background(), `CREATE TABLE t (x INTEGER)`)
	require.NoError(t, err)
	_, err = conn.Exec(context.Background(), `INSERT INTO t (x) VALUES (1)`)
	require.NoError(t, err)
}

func TestConnection_ExecAndQuery(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	res, err := conn.Exec(ctx, `INSERT INTO notes (id, body) VALUES (?, ?), (?, ?)`, "1", "alpha", "2", "beta")
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	rows, err := conn.Query(ctx, `SELECT body FROM notes ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var bodies []string
	for rows.Next() {
		var b string
		require.NoError(t, rows.Scan(&b))
		bodies = append(bodies, b)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"alpha", "beta"}, bodies)

	var missing string
	err = conn.QueryRow(ctx, `SELECT body FROM notes WHERE id = ?`, "nope").Scan(&missing)
	assert.True(t, database.IsNoRows(err))
}

func TestUnitOfWork(t *testing.T) {
	ctx := context.Background()

	t.Run("commit persists writes made through the context", func(t *testing.T) {
		conn := openTestConnection(t)
		uow := database.NewUnitOfWork(conn)

		txCtx, err := uow.Begin(ctx)
		require.NoError(t, err)
		_, err = database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO notes (id, body) VALUES (?, ?)`, "1", "kept")
		require.NoError(t, err)
		require.NoError(t, uow.Commit(txCtx))

		assert.Equal(t, 1, countNotes(t, conn))
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		conn := openTestConnection(t)
		uow := database.NewUnitOfWork(conn)

		txCtx, err := uow.Begin(ctx)
		require.NoError(t, err)
		_, err = database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO notes (id, body) VALUES (?, ?)`, "1", "dropped")
		require.NoError(t, err)
		require.NoError(t, uow.Rollback(txCtx))

		assert.Equal(t, 0, countNotes(t, conn))
	})

	t.Run("nested begin joins the outer transaction", func(t *testing.T) {
		conn := openTestConnection(t)
		uow := database.NewUnitOfWork(conn)

		outer, err := uow.Begin(ctx)
		require.NoError(t, err)
		inner, err := uow.Begin(outer)
		require.NoError(t, err)
		assert.Same(t, database.TxFromContext(outer), database.TxFromContext(inner))

		_, err = database.ExecutorFromContext(inner, conn).Exec(inner, `INSERT INTO notes (id, body) VALUES (?, ?)`, "1", "inner")
		require.NoError(t, err)
		require.NoError(t, uow.Commit(inner))
		require.NoError(t, uow.Rollback(outer))

		assert.Equal(t, 0, countNotes(t, conn))
	})

	t.Run("commit without a transaction fails", func(t *testing.T) {
		uow := database.NewUnitOfWork(openTestConnection(t))
		assert.True(t, errors.Is(uow.Commit(ctx), database.ErrNoTransaction))
	})
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)

	_, err := conn.Exec(ctx, `INSERT INTO notes (id, body) VALUES (?, ?)`, "1", "a")
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO notes (id, body) VALUES (?, ?)`, "1", "b")

	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}
