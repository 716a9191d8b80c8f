package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/warden/internal/bridge"
	"github.com/example/warden/internal/ports/secondary"
)

// MetricsSink implements secondary.MetricsSink over the storage bridge.
type MetricsSink struct {
	bridge *bridge.Bridge
}

// NewMetricsSink creates a new bridge-backed metrics sink.
func NewMetricsSink(b *bridge.Bridge) *MetricsSink {
	return &MetricsSink{bridge: b}
}

// Record persists the duration and outcome of one backend invocation.
func (m *MetricsSink) Record(ctx context.Context, backend, outcome string, durationMs int64) error {
	_, err := m.bridge.Run(ctx,
		"INSERT INTO invocation_metrics (id, backend, outcome, duration_ms) VALUES (?, ?, ?, ?)",
		uuid.NewString(), backend, outcome, durationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record invocation metric: %w", err)
	}
	return nil
}

// Summary aggregates recorded invocations per backend.
func (m *MetricsSink) Summary(ctx context.Context) ([]*secondary.BackendMetrics, error) {
	rows, err := m.bridge.GetAll(ctx,
		`SELECT backend,
		        COUNT(*) AS invocations,
		        SUM(CASE WHEN outcome = 'failure' THEN 1 ELSE 0 END) AS failures,
		        AVG(duration_ms) AS avg_duration_ms
		 FROM invocation_metrics
		 GROUP BY backend
		 ORDER BY backend`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize invocation metrics: %w", err)
	}

	out := make([]*secondary.BackendMetrics, 0, len(rows))
	for _, row := range rows {
		out = append(out, &secondary.BackendMetrics{
			Backend:       asString(row["backend"]),
			Invocations:   int(asInt64(row["invocations"])),
			Failures:      int(asInt64(row["failures"])),
			AvgDurationMs: asFloat64(row["avg_duration_ms"]),
		})
	}
	return out, nil
}

// Ensure MetricsSink implements the interface
var _ secondary.MetricsSink = (*MetricsSink)(nil)
