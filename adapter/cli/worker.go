package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/spf13/cobra"
)

const statsInterval = time.Minute

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Publish outbox events to RabbitMQ",
	Long: `Drain the transactional outbox: publish pending task events to the
RabbitMQ topic exchange, retry failures with backoff, dead-letter what
keeps failing and purge old published rows.

A health server on WORKER_HEALTH_ADDR exposes /healthz and /readyz.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		log := currentLogger()

		if err := c.OpenPublisher(); err != nil {
			return err
		}
		processor := c.OutboxProcessor
		processor.Start(ctx)
		defer processor.Stop()

		if addr := c.Config.WorkerHealthAddr; addr != "" {
			healthSrv := &http.Server{
				Addr:              addr,
				Handler:           workerHealthHandler(processor, c.Health),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				log.Info("health server starting", "addr", addr)
				if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("health server error", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := healthSrv.Shutdown(shutdownCtx); err != nil {
					log.Warn("health server shutdown error", "error", err)
				}
			}()
		}

		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info("worker stopping")
				return nil
			case <-ticker.C:
				stats := processor.Stats()
				log.Info("outbox stats",
					"running", stats.Running,
					"published", stats.Published,
					"failed", stats.Failed,
					"dead", stats.DeadLettered,
					"purged", stats.Purged,
					"lag_seconds", stats.LagSeconds,
				)
			}
		}
	},
}

type statsSource interface {
	Stats() outbox.Stats
}

func workerHealthHandler(processor statsSource, health *observability.HealthRegistry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := processor.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "ok",
			"running":           stats.Running,
			"published":         stats.Published,
			"failed":            stats.Failed,
			"dead":              stats.DeadLettered,
			"purged":            stats.Purged,
			"lag_seconds":       stats.LagSeconds,
			"last_processed_at": stats.LastProcessedAt,
			"last_error_at":     stats.LastErrorAt,
			"last_error":        stats.LastError,
		})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		report := health.Check(ctx)
		status := http.StatusOK
		if report.Status == observability.HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
