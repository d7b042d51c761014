package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/taskboard/adapter/realtime"
	"github.com/felixgeelhaar/taskboard/internal/board/application/queries"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/auth"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
)

// BoardHandler serves the read-only board API.
type BoardHandler struct {
	verifier  auth.Verifier
	getTask   *queries.GetTaskHandler
	listTasks *queries.ListTasksHandler
	editors   *queries.TaskEditorsHandler
	activity  *queries.ActivityHandler
	listUsers *queries.ListUsersHandler
	logger    *slog.Logger
}

// BoardHandlerConfig holds dependencies for the board handler.
type BoardHandlerConfig struct {
	Verifier  auth.Verifier
	GetTask   *queries.GetTaskHandler
	ListTasks *queries.ListTasksHandler
	Editors   *queries.TaskEditorsHandler
	Activity  *queries.ActivityHandler
	ListUsers *queries.ListUsersHandler
	Logger    *slog.Logger
}

// NewBoardHandler creates a new board handler.
func NewBoardHandler(cfg BoardHandlerConfig) *BoardHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &BoardHandler{
		verifier:  cfg.Verifier,
		getTask:   cfg.GetTask,
		listTasks: cfg.ListTasks,
		editors:   cfg.Editors,
		activity:  cfg.Activity,
		listUsers: cfg.ListUsers,
		logger:    cfg.Logger,
	}
}

type identityKey struct{}

// IdentityFromContext returns the caller set by the auth middleware.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

func (h *BoardHandler) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.verifier.Verify(r.Context(), realtime.TokenFromRequest(r))
		if err != nil {
			realtime.WriteEnvelope(w, http.StatusUnauthorized, realtime.Fail(auth.ErrUnauthenticated))
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, *identity)
		ctx = observability.WithUserID(ctx, identity.UserID.String())
		next(w, r.WithContext(ctx))
	}
}

// ListTasks handles GET /api/v1/tasks
func (h *BoardHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	query := queries.ListTasksQuery{Status: r.URL.Query().Get("status")}
	if raw := r.URL.Query().Get("assignedTo"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.fail(w, r, task.NewValidationError("assignedTo", task.RuleMalformed, task.ErrMalformedPayload))
			return
		}
		query.AssignedTo = &id
	}

	result, err := h.listTasks.Handle(r.Context(), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, realtime.OK(result))
}

// GetTask handles GET /api/v1/tasks/{taskID}
func (h *BoardHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.pathID(w, r, "taskID")
	if !ok {
		return
	}
	result, err := h.getTask.Handle(r.Context(), queries.GetTaskQuery{TaskID: taskID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, realtime.OK(result))
}

// TaskHistory handles GET /api/v1/tasks/{taskID}/history
func (h *BoardHandler) TaskHistory(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.pathID(w, r, "taskID")
	if !ok {
		return
	}
	result, err := h.activity.TaskHistory(r.Context(), queries.TaskHistoryQuery{
		TaskID: taskID,
		Limit:  parseIntParam(r, "limit", 0),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, realtime.OK(result))
}

// TaskEditors handles GET /api/v1/tasks/{taskID}/editors
func (h *BoardHandler) TaskEditors(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.pathID(w, r, "taskID")
	if !ok {
		return
	}
	result, err := h.editors.Handle(r.Context(), queries.TaskEditorsQuery{TaskID: taskID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, realtime.OK(result))
}

// RecentActivity handles GET /api/v1/activity
func (h *BoardHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	result, err := h.activity.RecentActivity(r.Context(), queries.RecentActivityQuery{
		Limit: parseIntParam(r, "limit", 0),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, realtime.OK(result))
}

// UserActivity handles GET /api/v1/users/{userID}/activity
func (h *BoardHandler) UserActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	result, err := h.activity.UserActivity(r.Context(), queries.UserActivityQuery{
		UserID: userID,
		Limit:  parseIntParam(r, "limit", 0),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, realtime.OK(result))
}

// ListUsers handles GET /api/v1/users
func (h *BoardHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	result, err := h.listUsers.Handle(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, realtime.OK(result))
}

func (h *BoardHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		h.fail(w, r, task.NewValidationError(name, task.RuleMalformed, task.ErrMalformedPayload))
		return uuid.Nil, false
	}
	return id, true
}

func (h *BoardHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	env := realtime.Fail(err)
	status := statusFor(env.Error.Code)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "board request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, env)
}

func statusFor(code string) int {
	switch code {
	case realtime.CodeNotFound:
		return http.StatusNotFound
	case realtime.CodeValidation:
		return http.StatusBadRequest
	case realtime.CodeUnauthenticated:
		return http.StatusUnauthorized
	case realtime.CodeConflict:
		return http.StatusConflict
	case realtime.CodeNoEligibleUsers:
		return http.StatusUnprocessableEntity
	case realtime.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	if val := r.URL.Query().Get(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}
