package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board over WebSocket and HTTP",
	Long: `Serve the board: the WebSocket gateway on /ws, the read API under
/api/v1, and /health, /readyz and /metrics.

With OUTBOX_PROCESSOR_ENABLED=true the outbox is also drained in this
process instead of by a separate worker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		log := currentLogger()

		c.StartBackground(ctx)
		if c.Config.OutboxProcessorEnabled {
			if err := c.OpenPublisher(); err != nil {
				return err
			}
			c.OutboxProcessor.Start(ctx)
		} else {
			log.Info("outbox processor disabled in serve")
		}

		server := c.APIServer()
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case <-ctx.Done():
			log.Info("shutdown requested")
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Close sockets first so Shutdown does not wait on hijacked connections.
		c.Gateway.Close()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
