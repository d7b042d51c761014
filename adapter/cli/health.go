package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/taskboard/pkg/observability"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the board's dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		report := c.Health.Check(ctx)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status: %s\n", report.Status)
		for _, name := range c.Health.Names() {
			res := report.Checks[name]
			line := fmt.Sprintf("  %-10s %s (%s)", name, res.Status, res.Duration)
			if res.Message != "" {
				line += ": " + res.Message
			}
			fmt.Fprintln(out, line)
		}
		if report.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("board is unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
