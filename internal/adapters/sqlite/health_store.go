// Package sqlite contains SQLite implementations of the secondary ports.
// All statements go through the storage bridge; this package never touches
// the database connection directly.
package sqlite

import (
	"context"
	"fmt"

	"github.com/example/warden/internal/bridge"
	"github.com/example/warden/internal/ports/secondary"
)

// HealthStore implements secondary.HealthStore over the storage bridge.
type HealthStore struct {
	bridge *bridge.Bridge
}

// NewHealthStore creates a new bridge-backed health store.
func NewHealthStore(b *bridge.Bridge) *HealthStore {
	return &HealthStore{bridge: b}
}

// Upsert writes the health row for a backend, inserting or replacing.
func (s *HealthStore) Upsert(ctx context.Context, record *secondary.HealthRecord) error {
	_, err := s.bridge.Run(ctx,
		`INSERT INTO backend_health (backend, state, failure_count, last_failure_time, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(backend) DO UPDATE SET
		   state = excluded.state,
		   failure_count = excluded.failure_count,
		   last_failure_time = excluded.last_failure_time,
		   updated_at = CURRENT_TIMESTAMP`,
		record.Backend, record.State, record.FailureCount, record.LastFailureTime,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert backend health: %w", err)
	}
	return nil
}

// GetByBackend retrieves the health row for a backend, nil when unseen.
func (s *HealthStore) GetByBackend(ctx context.Context, backend string) (*secondary.HealthRecord, error) {
	row, err := s.bridge.GetOne(ctx,
		"SELECT backend, state, failure_count, last_failure_time FROM backend_health WHERE backend = ?",
		backend,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get backend health: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	return healthFromRow(row)
}

// LoadAll retrieves every persisted health row.
func (s *HealthStore) LoadAll(ctx context.Context) ([]*secondary.HealthRecord, error) {
	rows, err := s.bridge.GetAll(ctx,
		"SELECT backend, state, failure_count, last_failure_time FROM backend_health ORDER BY backend",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load backend health: %w", err)
	}

	records := make([]*secondary.HealthRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := healthFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DeleteAll removes every health row.
func (s *HealthStore) DeleteAll(ctx context.Context) error {
	if _, err := s.bridge.Run(ctx, "DELETE FROM backend_health"); err != nil {
		return fmt.Errorf("failed to delete backend health: %w", err)
	}
	return nil
}

func healthFromRow(row map[string]any) (*secondary.HealthRecord, error) {
	rec := &secondary.HealthRecord{
		Backend:         asString(row["backend"]),
		State:           asString(row["state"]),
		FailureCount:    int(asInt64(row["failure_count"])),
		LastFailureTime: asInt64(row["last_failure_time"]),
	}
	if rec.Backend == "" {
		return nil, fmt.Errorf("backend_health row missing backend name: %v", row)
	}
	return rec, nil
}

// Ensure HealthStore implements the interface
var _ secondary.HealthStore = (*HealthStore)(nil)
