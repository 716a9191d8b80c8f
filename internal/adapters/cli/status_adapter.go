// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting but delegate
// all behavior to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/example/warden/internal/ports/primary"
)

// StatusAdapter renders admin-surface snapshots for humans.
// It depends only on the AdminService interface, enabling easy testing with mocks.
type StatusAdapter struct {
	service primary.AdminService
	out     io.Writer
}

// NewStatusAdapter creates a new StatusAdapter writing to out.
func NewStatusAdapter(service primary.AdminService, out io.Writer) *StatusAdapter {
	return &StatusAdapter{
		service: service,
		out:     out,
	}
}

// Health renders the current breaker snapshot as a table.
func (a *StatusAdapter) Health(ctx context.Context) error {
	snapshot := a.service.HealthSnapshot()

	if len(snapshot) == 0 {
		fmt.Fprintln(a.out, "No backends seen yet")
		return nil
	}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(a.out, "\n%-20s %-12s %-10s %s\n", "BACKEND", "STATE", "FAILURES", "LAST FAILURE")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, name := range names {
		h := snapshot[name]
		lastFailure := "-"
		if !h.LastFailureTime.IsZero() {
			lastFailure = h.LastFailureTime.Format(time.RFC3339)
		}
		fmt.Fprintf(a.out, "%-20s %-12s %-10d %s\n", name, stateLabel(h.State), h.FailureCount, lastFailure)
	}
	fmt.Fprintln(a.out)
	return nil
}

// Audit renders the most recent audit entries, newest first.
func (a *StatusAdapter) Audit(ctx context.Context, limit int) error {
	entries, err := a.service.RecentAudit(ctx, limit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No audit entries found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-20s %-18s %-10s %-8s %-12s %s\n", "TIME", "OPERATION", "LEVEL", "DECISION", "OUTCOME", "BACKEND")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────────────────────")
	for _, e := range entries {
		backend := e.Backend
		if e.Fallback != "" {
			backend += " → " + e.Fallback
		}
		fmt.Fprintf(a.out, "%-20s %-18s %-10s %-8s %-12s %s\n",
			e.CreatedAt, e.OperationKind, e.AutonomyLevel, decisionLabel(e.Decision), e.Outcome, backend)
		if e.Error != "" {
			fmt.Fprintf(a.out, "    %s\n", e.Error)
		}
	}
	fmt.Fprintln(a.out)
	return nil
}

// Metrics renders per-backend invocation aggregates.
func (a *StatusAdapter) Metrics(ctx context.Context) error {
	metrics, err := a.service.Metrics(ctx)
	if err != nil {
		return err
	}

	if len(metrics) == 0 {
		fmt.Fprintln(a.out, "No invocations recorded yet")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-20s %-12s %-10s %s\n", "BACKEND", "INVOCATIONS", "FAILURES", "AVG MS")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, m := range metrics {
		fmt.Fprintf(a.out, "%-20s %-12d %-10d %.0f\n", m.Backend, m.Invocations, m.Failures, m.AvgDurationMs)
	}
	fmt.Fprintln(a.out)
	return nil
}

// Reset clears all breaker state.
func (a *StatusAdapter) Reset(ctx context.Context) error {
	if err := a.service.ResetBreakers(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "✓ All circuit breakers reset to closed")
	return nil
}

func stateLabel(state string) string {
	switch state {
	case "closed":
		return color.New(color.FgGreen).Sprint(state)
	case "open":
		return color.New(color.FgRed).Sprint(state)
	case "half_open":
		return color.New(color.FgYellow).Sprint(state)
	default:
		return state
	}
}

func decisionLabel(decision string) string {
	if decision == "denied" {
		return color.New(color.FgRed).Sprint(decision)
	}
	return decision
}
