package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/felixgeelhaar/taskboard/internal/shared/infrastructure/eventbus"
	"github.com/spf13/cobra"
)

var tailPattern string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect integration events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print task events as the worker publishes them",
	Long: `Bind a queue to the event exchange and print every matching event.

Examples:
  taskboard events tail
  taskboard events tail --pattern "board.task.deleted"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		registry := eventbus.NewRegistry(currentLogger())
		registry.Register(eventPrinter(cmd.OutOrStdout(), tailPattern))

		consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
			URL:    cfg.RabbitMQURL,
			Queue:  cfg.EventsQueue,
			Logger: currentLogger(),
		}, registry)
		if err != nil {
			return err
		}
		defer consumer.Close()

		err = consumer.Start(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// eventPrinter writes one line per event.
func eventPrinter(out io.Writer, pattern string) eventbus.Handler {
	var mu sync.Mutex
	return eventbus.HandlerFunc{
		Keys: []string{pattern},
		Fn: func(_ context.Context, event *eventbus.Event) error {
			mu.Lock()
			defer mu.Unlock()
			_, err := fmt.Fprintf(out, "%s %-32s %s %s\n",
				event.OccurredAt.Format("2006-01-02T15:04:05.000Z07:00"),
				event.RoutingKey,
				event.AggregateID,
				event.Payload,
			)
			return err
		},
	}
}

func init() {
	eventsTailCmd.Flags().StringVar(&tailPattern, "pattern", "board.#", "routing key pattern to bind")
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}
