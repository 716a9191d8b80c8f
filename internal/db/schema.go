package db

// SchemaSQL is the complete modern schema for fresh warden installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(), so repository code that references a column
// missing here fails immediately with "no such column" at test time.
//
// When adding new columns or tables:
//  1. Add a migration in internal/db/migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- Per-backend circuit breaker state, upserted on every transition and
-- read back once at registry construction.
CREATE TABLE IF NOT EXISTS backend_health (
	backend TEXT PRIMARY KEY,
	state TEXT NOT NULL CHECK(state IN ('closed', 'open', 'half_open')) DEFAULT 'closed',
	failure_count INTEGER NOT NULL DEFAULT 0,
	last_failure_time INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Immutable audit trail of gated operations. One row per attempt,
-- outcome filled in after the invocation resolves.
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	caller TEXT,
	workflow TEXT,
	operation_kind TEXT NOT NULL,
	autonomy_level TEXT NOT NULL,
	backend TEXT NOT NULL,
	fallback TEXT,
	decision TEXT NOT NULL CHECK(decision IN ('allowed', 'denied')),
	outcome TEXT,
	error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at);

-- Per-invocation timing records for the admin surface.
CREATE TABLE IF NOT EXISTS invocation_metrics (
	id TEXT PRIMARY KEY,
	backend TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('success', 'failure')),
	duration_ms INTEGER NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_invocation_metrics_backend ON invocation_metrics(backend);

-- Migration bookkeeping.
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// GetSchemaSQL returns the authoritative schema SQL for use in tests.
func GetSchemaSQL() string {
	return SchemaSQL
}
