package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/wire"
)

// AuditCmd returns the audit command
func AuditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent gated operations",
		Long: `List the most recent audit entries, newest first. Each entry records
the operation kind, the declared autonomy level, the gate decision, and
how the invocation resolved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := wire.StatusAdapter().Audit(ctx, limit); err != nil {
				return err
			}
			return wire.Shutdown(ctx)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")

	return cmd
}
