package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/wire"
)

// ResetCmd returns the reset command
func ResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset all circuit breakers to closed",
		Long: `Clear every backend's breaker state to closed with zero failures,
both in memory and in the store. Ops escape hatch for when a backend has
recovered out of band and you do not want to wait for the reset timeout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := wire.StatusAdapter().Reset(ctx); err != nil {
				return err
			}
			return wire.Shutdown(ctx)
		},
	}

	return cmd
}
