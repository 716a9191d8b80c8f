package app

import (
	"context"
	"fmt"

	"github.com/example/warden/internal/core/breaker"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// AdminServiceImpl implements the AdminService introspection surface.
// It reads registry snapshots and persisted audit/metrics rows; it never
// drives call decisions.
type AdminServiceImpl struct {
	registry *breaker.Registry
	audit    secondary.AuditLog
	metrics  secondary.MetricsSink
}

// NewAdminService creates a new AdminService with injected dependencies.
func NewAdminService(
	registry *breaker.Registry,
	audit secondary.AuditLog,
	metrics secondary.MetricsSink,
) *AdminServiceImpl {
	return &AdminServiceImpl{
		registry: registry,
		audit:    audit,
		metrics:  metrics,
	}
}

// HealthSnapshot returns the current breaker state per backend.
func (s *AdminServiceImpl) HealthSnapshot() map[string]primary.BackendHealth {
	return s.registry.Snapshot()
}

// ResetBreakers clears all breaker state to closed (ops escape hatch).
func (s *AdminServiceImpl) ResetBreakers(ctx context.Context) error {
	return s.registry.Reset(ctx)
}

// RecentAudit returns the most recent audit entries, newest first.
func (s *AdminServiceImpl) RecentAudit(ctx context.Context, limit int) ([]primary.AuditEntry, error) {
	records, err := s.audit.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	entries := make([]primary.AuditEntry, len(records))
	for i, r := range records {
		entries[i] = primary.AuditEntry{
			ID:            r.ID,
			Caller:        r.Caller,
			Workflow:      r.Workflow,
			OperationKind: r.OperationKind,
			AutonomyLevel: r.AutonomyLevel,
			Backend:       r.Backend,
			Fallback:      r.Fallback,
			Decision:      r.Decision,
			Outcome:       r.Outcome,
			Error:         r.Error,
			CreatedAt:     r.CreatedAt,
		}
	}
	return entries, nil
}

// Metrics returns per-backend invocation aggregates.
func (s *AdminServiceImpl) Metrics(ctx context.Context) ([]primary.BackendMetrics, error) {
	records, err := s.metrics.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize metrics: %w", err)
	}

	out := make([]primary.BackendMetrics, len(records))
	for i, r := range records {
		out[i] = primary.BackendMetrics{
			Backend:       r.Backend,
			Invocations:   r.Invocations,
			Failures:      r.Failures,
			AvgDurationMs: r.AvgDurationMs,
		}
	}
	return out, nil
}

// Ensure AdminServiceImpl implements the interface
var _ primary.AdminService = (*AdminServiceImpl)(nil)
