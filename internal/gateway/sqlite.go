package gateway

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tartampluch/go-lifegrid/internal/config"

	_ "modernc.org/sqlite" // SQLite driver.
)

// SQLiteBackend stores one row per scope in a local SQLite file.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), config.DirPermUserRWX); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrCreateDir, err)
		}
	}
	db, err := sql.Open(config.SQLiteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrSQLiteOpen, err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		_ = db.Close() // Best-effort close on migration failure.
		return nil, fmt.Errorf("%s: %w", config.ErrSQLiteMigrate, err)
	}
	return b, nil
}

// Close closes the underlying database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + config.SQLiteTable + ` (
			scope TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Read returns the payload stored for scope.
func (b *SQLiteBackend) Read(scope string) ([]byte, bool, error) {
	var payload []byte
	err := b.db.QueryRow(
		`SELECT payload FROM `+config.SQLiteTable+` WHERE scope = ?`, scope,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Write replaces the payload stored for scope.
func (b *SQLiteBackend) Write(scope string, data []byte) error {
	_, err := b.db.Exec(
		`INSERT INTO `+config.SQLiteTable+` (scope, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(scope) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		scope, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}
