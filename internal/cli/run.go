// Package cli contains the cobra commands for warden.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/ctxutil"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/wire"
)

// RunCmd returns the run command
func RunCmd() *cobra.Command {
	var (
		backend  string
		fallback string
		kind     string
		level    string
		workflow string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [payload]",
		Short: "Execute a task against a backend with gating and fallback",
		Long: `Run one task through the reliability layer:
- The operation kind is checked against the declared autonomy level first;
  a denial aborts before any backend process is touched.
- The preferred backend's circuit breaker is consulted; an open circuit
  skips straight to the fallback (if any).
- At most one fallback hop is attempted.

The payload is passed to the backend on stdin. The autonomy level may be
a concrete level (read_only, low, medium, high) or "auto", which resolves
from the workflow name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if caller := os.Getenv("WARDEN_CALLER"); caller != "" {
				ctx = ctxutil.WithCaller(ctx, caller)
			}

			result, err := wire.ExecutionService().Execute(ctx, primary.ExecuteRequest{
				PreferredBackend: backend,
				FallbackBackend:  fallback,
				OperationKind:    kind,
				AutonomyLevel:    level,
				WorkflowName:     workflow,
				Payload:          args[0],
				Timeout:          timeout,
			})

			if shutdownErr := wire.Shutdown(ctx); shutdownErr != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", shutdownErr)
			}

			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "✓ %s answered in %s\n", result.BackendUsed, result.Duration.Round(time.Millisecond))
			fmt.Print(result.Output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "", "Preferred backend name (required)")
	cmd.Flags().StringVarP(&fallback, "fallback", "f", "", "Fallback backend name")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Operation kind, e.g. file_read, git_push (required)")
	cmd.Flags().StringVarP(&level, "level", "l", "", "Autonomy level (read_only|low|medium|high|auto)")
	cmd.Flags().StringVarP(&workflow, "workflow", "w", "", "Workflow name, used to resolve the auto level")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Invocation timeout (default: backend timeout)")
	_ = cmd.MarkFlagRequired("backend")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}
