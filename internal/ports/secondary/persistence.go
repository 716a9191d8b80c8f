// Package secondary defines the secondary ports (driven adapters) for warden.
// These are the interfaces through which the reliability core drives
// external systems: the persisted store and the backend processes.
package secondary

import "context"

// HealthStore defines the secondary port for circuit breaker persistence.
// Rows are keyed by backend name and upserted on every state transition.
type HealthStore interface {
	// Upsert writes the health row for a backend, inserting or replacing.
	Upsert(ctx context.Context, record *HealthRecord) error

	// GetByBackend retrieves the health row for a backend, nil when unseen.
	GetByBackend(ctx context.Context, backend string) (*HealthRecord, error)

	// LoadAll retrieves every persisted health row. Called once at registry
	// construction so health survives process restarts.
	LoadAll(ctx context.Context) ([]*HealthRecord, error)

	// DeleteAll removes every health row (registry reset escape hatch).
	DeleteAll(ctx context.Context) error
}

// HealthRecord represents a backend's breaker state as stored in persistence.
type HealthRecord struct {
	Backend         string
	State           string // "closed", "open", "half_open"
	FailureCount    int
	LastFailureTime int64 // epoch milliseconds, 0 means never failed
}

// AuditLog defines the secondary port for the operation audit trail.
// Entries are immutable apart from the outcome written after resolution.
type AuditLog interface {
	// Append persists a new audit entry for an operation attempt.
	Append(ctx context.Context, record *AuditRecord) error

	// SetOutcome records how the attempt resolved.
	SetOutcome(ctx context.Context, id, outcome, errMsg string) error

	// List retrieves the most recent entries, newest first.
	List(ctx context.Context, limit int) ([]*AuditRecord, error)
}

// AuditRecord represents one gated operation attempt as stored in persistence.
type AuditRecord struct {
	ID            string
	Caller        string // Empty string means null
	Workflow      string // Empty string means null
	OperationKind string
	AutonomyLevel string
	Backend       string
	Fallback      string // Empty string means null
	Decision      string // "allowed" or "denied"
	Outcome       string // Empty string means null until resolved
	Error         string // Empty string means null
	CreatedAt     string
}

// MetricsSink defines the secondary port for invocation timing records.
type MetricsSink interface {
	// Record persists the duration and outcome of one backend invocation.
	Record(ctx context.Context, backend, outcome string, durationMs int64) error

	// Summary aggregates recorded invocations per backend.
	Summary(ctx context.Context) ([]*BackendMetrics, error)
}

// BackendMetrics is the per-backend aggregate returned by Summary.
type BackendMetrics struct {
	Backend       string
	Invocations   int
	Failures      int
	AvgDurationMs float64
}
