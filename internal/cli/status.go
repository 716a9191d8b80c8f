package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	var showMetrics bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show circuit breaker state for every known backend",
		Long: `Display the breaker state per backend: closed (healthy), open
(failing, calls refused), or half_open (probing recovery).

This is a read-only snapshot for humans and dashboards; the run command
consults the live registry, not this view.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			adapter := wire.StatusAdapter()
			if err := adapter.Health(ctx); err != nil {
				return err
			}
			if showMetrics {
				if err := adapter.Metrics(ctx); err != nil {
					return err
				}
			}
			return wire.Shutdown(ctx)
		},
	}

	cmd.Flags().BoolVarP(&showMetrics, "metrics", "m", false, "Also show per-backend invocation metrics")

	return cmd
}
