// Package api is the HTTP surface of the board: probes, metrics, the
// websocket upgrade and the read-only board API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/google/uuid"
)

// Server is the HTTP API server for the board.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	logger *slog.Logger
	deps   ServerDeps
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ServerDeps are the handlers the server mounts. Nil handlers are not
// mounted.
type ServerDeps struct {
	Health    *observability.HealthRegistry
	Metrics   http.Handler
	WebSocket http.Handler
	Board     *BoardHandler
}

// NewServer creates a new board API server.
func NewServer(cfg ServerConfig, deps ServerDeps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		deps:   deps,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      withRequestID(s.mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.server.Handler }

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics)
	}
	if s.deps.WebSocket != nil {
		s.mux.Handle("GET /ws", s.deps.WebSocket)
	}

	if b := s.deps.Board; b != nil {
		s.mux.HandleFunc("GET /api/v1/tasks", b.authenticate(b.ListTasks))
		s.mux.HandleFunc("GET /api/v1/tasks/{taskID}", b.authenticate(b.GetTask))
		s.mux.HandleFunc("GET /api/v1/tasks/{taskID}/history", b.authenticate(b.TaskHistory))
		s.mux.HandleFunc("GET /api/v1/tasks/{taskID}/editors", b.authenticate(b.TaskEditors))
		s.mux.HandleFunc("GET /api/v1/activity", b.authenticate(b.RecentActivity))
		s.mux.HandleFunc("GET /api/v1/users", b.authenticate(b.ListUsers))
		s.mux.HandleFunc("GET /api/v1/users/{userID}/activity", b.authenticate(b.UserActivity))
	}
}

// handleHealth reports liveness only.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady runs the dependency checks.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": string(observability.HealthStatusHealthy)})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := s.deps.Health.Check(ctx)
	status := http.StatusOK
	if report.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting board API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down board API server")
	return s.server.Shutdown(ctx)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), id)))
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}
