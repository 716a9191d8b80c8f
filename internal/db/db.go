// Package db owns the SQLite schema and connection setup for warden.
//
// Unlike a typical pool-backed store, the returned *sql.DB is handed to
// exactly one owner (the storage bridge) and must never be shared: SQLite
// is only safe here when all statements run on a single goroutine.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath returns the path to the warden database file.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".warden", "warden.db"), nil
}

// Open opens (creating if needed) the database at path, enables foreign
// keys, and brings the schema up to date. The caller takes exclusive
// ownership of the returned handle.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The bridge serializes all access onto one goroutine; a second
	// pooled connection would silently break that guarantee.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := InitSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := RunMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return conn, nil
}

// InitSchema applies the authoritative schema to the given connection.
func InitSchema(conn *sql.DB) error {
	if _, err := conn.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
