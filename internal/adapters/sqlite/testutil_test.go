package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/warden/internal/bridge"
	"github.com/example/warden/internal/db"
)

// newTestBridge creates an in-memory database with the full schema, wrapped
// in a storage bridge the way production code sees it.
func newTestBridge(t *testing.T) *bridge.Bridge {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	b := bridge.New(conn, 0)
	t.Cleanup(func() { b.Close() })
	return b
}
