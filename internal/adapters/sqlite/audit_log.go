package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/warden/internal/bridge"
	"github.com/example/warden/internal/ports/secondary"
)

// AuditLog implements secondary.AuditLog over the storage bridge.
//
// Entries get random UUIDs rather than a MAX(id)+1 scheme: audit rows are
// appended concurrently through the bridge and a read-then-insert id
// sequence would race.
type AuditLog struct {
	bridge *bridge.Bridge
}

// NewAuditLog creates a new bridge-backed audit log.
func NewAuditLog(b *bridge.Bridge) *AuditLog {
	return &AuditLog{bridge: b}
}

// Append persists a new audit entry. If record.ID is empty a UUID is
// assigned and written back so callers can correlate the outcome later.
func (l *AuditLog) Append(ctx context.Context, record *secondary.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	_, err := l.bridge.Run(ctx,
		`INSERT INTO audit_log (id, caller, workflow, operation_kind, autonomy_level, backend, fallback, decision, outcome, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		nullable(record.Caller),
		nullable(record.Workflow),
		record.OperationKind,
		record.AutonomyLevel,
		record.Backend,
		nullable(record.Fallback),
		record.Decision,
		nullable(record.Outcome),
		nullable(record.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// SetOutcome records how the attempt resolved.
func (l *AuditLog) SetOutcome(ctx context.Context, id, outcome, errMsg string) error {
	affected, err := l.bridge.Run(ctx,
		"UPDATE audit_log SET outcome = ?, error = ? WHERE id = ?",
		outcome, nullable(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set audit outcome: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("audit entry %s not found", id)
	}
	return nil
}

// List retrieves the most recent entries, newest first.
func (l *AuditLog) List(ctx context.Context, limit int) ([]*secondary.AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.bridge.GetAll(ctx,
		`SELECT id, caller, workflow, operation_kind, autonomy_level, backend, fallback, decision, outcome, error, created_at
		 FROM audit_log ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	records := make([]*secondary.AuditRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &secondary.AuditRecord{
			ID:            asString(row["id"]),
			Caller:        asString(row["caller"]),
			Workflow:      asString(row["workflow"]),
			OperationKind: asString(row["operation_kind"]),
			AutonomyLevel: asString(row["autonomy_level"]),
			Backend:       asString(row["backend"]),
			Fallback:      asString(row["fallback"]),
			Decision:      asString(row["decision"]),
			Outcome:       asString(row["outcome"]),
			Error:         asString(row["error"]),
			CreatedAt:     asString(row["created_at"]),
		})
	}
	return records, nil
}

// nullable maps empty strings to NULL, matching the schema's convention.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure AuditLog implements the interface
var _ secondary.AuditLog = (*AuditLog)(nil)
