package persistence_test

import (
	"context"
	"os"
	"testing"

	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/persistence"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/database/postgres"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openPostgres connects to TEST_DATABASE_URL and starts from empty tables.
func openPostgres(t *testing.T) database.Connection {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	conn, err := database.Open(ctx, database.Config{Driver: database.DriverPostgres, URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn, nil))
	_, err = conn.Exec(ctx, `TRUNCATE task_logs, tasks, users, outbox`)
	require.NoError(t, err)
	return conn
}

func TestPostgresTaskRepository(t *testing.T) {
	ctx := context.Background()
	conn := openPostgres(t)
	repo := persistence.NewPostgresTaskRepository(conn)
	alice := createUser(t, conn, "alice", 0)
	bob := createUser(t, conn, "bob", 1)

	tk := createTask(t, repo, "Postgres", alice)
	loaded, err := repo.FindByID(ctx, tk.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version())

	status := task.StatusInProgress
	next, err := loaded.Apply(task.Fields{AssignedTo: &bob.ID, Status: &status}, alice.ID)
	require.NoError(t, err)
	require.NoError(t, repo.ConditionalUpdate(ctx, next))
	assert.Equal(t, 2, next.Version())

	stale, err := loaded.Apply(task.Fields{Unassign: true}, alice.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.ConditionalUpdate(ctx, stale), task.ErrVersionMismatch)

	counts, err := repo.CountOpenByAssignee(ctx, []uuid.UUID{alice.ID, bob.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{bob.ID: 1}, counts)

	dup, err := task.NewTask("Postgres", "", "", alice.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, dup), task.ErrDuplicateTitle)
}
