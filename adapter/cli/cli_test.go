package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/app"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/user"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskboard/pkg/config"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocalApp(t *testing.T) *app.Container {
	t.Helper()
	cfg := &config.Config{
		AppEnv:         "development",
		DatabaseDriver: "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "board.db"),
		LocalMode:      true,
		HTTPAddr:       "127.0.0.1:0",
	}
	SetLogger(observability.DiscardLogger())

	container, err := app.NewContainer(context.Background(), cfg, observability.DiscardLogger())
	require.NoError(t, err)
	SetApp(&App{Config: cfg, Container: container})
	t.Cleanup(func() {
		SetApp(nil)
		container.Close()
	})
	return container
}

func run(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "taskboard dev")
	assert.Contains(t, out, "commit: none")
}

func TestCommands_RequireContainer(t *testing.T) {
	SetApp(nil)

	tests := [][]string{
		{"user", "list"},
		{"health"},
		{"token", "issue", "--user", uuid.NewString()},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := run(context.Background(), args...)
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}
}

func TestUserAddAndList(t *testing.T) {
	c := setupLocalApp(t)
	ctx := context.Background()

	out, err := run(ctx, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No users")

	out, err = run(ctx, "user", "add", "--name", "Ada Lovelace", "--email", "Ada@Example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "User added:")
	assert.Contains(t, out, "email: ada@example.com")

	users, err := c.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	out, err = run(ctx, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Users (1):")
	assert.Contains(t, out, users[0].ID.String())
	assert.Contains(t, out, "Ada Lovelace <ada@example.com>  open: 0")
}

func TestUserAdd_Rejects(t *testing.T) {
	setupLocalApp(t)
	ctx := context.Background()

	_, err := run(ctx, "user", "add", "--name", "Ada", "--email", "not-an-email")
	assert.ErrorIs(t, err, user.ErrInvalidEmail)

	_, err = run(ctx, "user", "add", "--name", "Ada", "--email", "ada@example.com")
	require.NoError(t, err)
	_, err = run(ctx, "user", "add", "--name", "Other Ada", "--email", "ada@example.com")
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
}

func TestTokenIssue(t *testing.T) {
	c := setupLocalApp(t)
	ctx := context.Background()

	ada, err := user.NewUser("Ada", "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, c.Users.Create(ctx, ada))

	out, err := run(ctx, "token", "issue", "--user", ada.ID.String())
	require.NoError(t, err)

	identity, err := c.Verifier.Verify(ctx, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, ada.ID, identity.UserID)

	_, err = run(ctx, "token", "issue", "--user", "nope")
	assert.Error(t, err)

	_, err = run(ctx, "token", "issue", "--user", uuid.NewString())
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestHealth(t *testing.T) {
	setupLocalApp(t)

	out, err := run(context.Background(), "health")
	require.NoError(t, err)
	assert.Contains(t, out, "status: healthy")
	assert.Contains(t, out, "database")
}

func TestServe_StopsOnCancel(t *testing.T) {
	setupLocalApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, err := run(ctx, "serve")
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

type fixedStats outbox.Stats

func (s fixedStats) Stats() outbox.Stats { return outbox.Stats(s) }

func TestWorkerHealthHandler(t *testing.T) {
	health := observability.NewHealthRegistry()
	handler := workerHealthHandler(fixedStats{Running: true, Published: 7, DeadLettered: 1}, health)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(7), body["published"])
	assert.Equal(t, float64(1), body["dead"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	health.Register("rabbitmq", observability.PingChecker(func(context.Context) error {
		return errors.New("connection closed")
	}, true))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventPrinter(t *testing.T) {
	var out bytes.Buffer
	printer := eventPrinter(&out, "board.#")
	assert.Equal(t, []string{"board.#"}, printer.Patterns())

	taskID := uuid.New()
	err := printer.Handle(context.Background(), &eventbus.Event{
		EventID:     uuid.New(),
		AggregateID: taskID,
		RoutingKey:  "board.task.deleted",
		OccurredAt:  time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Payload:     json.RawMessage(`{"title":"Ship it"}`),
	})
	require.NoError(t, err)

	line := out.String()
	assert.True(t, strings.HasPrefix(line, "2024-03-01T09:30:00.000Z"))
	assert.Contains(t, line, "board.task.deleted")
	assert.Contains(t, line, taskID.String())
	assert.Contains(t, line, `{"title":"Ship it"}`)
}
