package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.DB) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "add_workflow_column_to_audit_log",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_invocation_metrics_backend_index",
		Up:      migrationV2,
	},
}

// RunMigrations applies any pending migrations to the connection.
// Fresh installs get the full SchemaSQL first, so every migration must be
// a no-op when its change is already present.
func RunMigrations(conn *sql.DB) error {
	applied, err := appliedVersions(conn)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := m.Up(conn); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := conn.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			m.Version, m.Name,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func appliedVersions(conn *sql.DB) (map[int]bool, error) {
	rows, err := conn.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func columnExists(conn *sql.DB, table, column string) (bool, error) {
	rows, err := conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// migrationV1 adds the workflow column to audit_log for installs that
// predate workflow-aware auditing.
func migrationV1(conn *sql.DB) error {
	exists, err := columnExists(conn, "audit_log", "workflow")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = conn.Exec("ALTER TABLE audit_log ADD COLUMN workflow TEXT")
	return err
}

// migrationV2 backfills the backend index on invocation_metrics.
func migrationV2(conn *sql.DB) error {
	_, err := conn.Exec("CREATE INDEX IF NOT EXISTS idx_invocation_metrics_backend ON invocation_metrics(backend)")
	return err
}
