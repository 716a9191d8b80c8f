// Package primary defines the primary ports (driving adapters) for warden.
// These are the interfaces through which callers drive the reliability core.
package primary

import (
	"context"
	"time"
)

// ExecutionService is the single entry point tying gating, availability,
// invocation, and fallback together for one logical call.
type ExecutionService interface {
	// Execute runs one task against the preferred backend, falling back at
	// most once. Denials and unavailability abort before any backend
	// process is touched.
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
}

// ExecuteRequest is the caller-facing operation request.
type ExecuteRequest struct {
	PreferredBackend string
	FallbackBackend  string // Empty string means no fallback
	OperationKind    string
	AutonomyLevel    string // concrete level or "auto"
	WorkflowName     string
	Payload          string
	Timeout          time.Duration // per-invocation timeout, 0 means backend default
}

// ExecuteResult reports a completed call.
type ExecuteResult struct {
	Success     bool
	Output      string
	BackendUsed string
	Duration    time.Duration
}

// AdminService is the read-mostly introspection surface for dashboards and
// operators. Snapshot data must not be used to drive call decisions.
type AdminService interface {
	// HealthSnapshot returns the current breaker state per backend.
	HealthSnapshot() map[string]BackendHealth

	// ResetBreakers clears all breaker state to closed (ops escape hatch).
	ResetBreakers(ctx context.Context) error

	// RecentAudit returns the most recent audit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)

	// Metrics returns per-backend invocation aggregates.
	Metrics(ctx context.Context) ([]BackendMetrics, error)
}

// BackendHealth is a point-in-time view of one backend's breaker, safe to
// serialize to JSON.
type BackendHealth struct {
	State           string    `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitzero"`
	Available       bool      `json:"available"`
}

// AuditEntry is one gated operation attempt as shown to operators.
type AuditEntry struct {
	ID            string
	Caller        string
	Workflow      string
	OperationKind string
	AutonomyLevel string
	Backend       string
	Fallback      string
	Decision      string
	Outcome       string
	Error         string
	CreatedAt     string
}

// BackendMetrics is the per-backend invocation aggregate.
type BackendMetrics struct {
	Backend       string
	Invocations   int
	Failures      int
	AvgDurationMs float64
}
