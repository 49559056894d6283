package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteTier is the durable local tier: a single key/value table in a
// SQLite file. Every write commits here synchronously before any
// remote sync is attempted.
type SQLiteTier struct {
	db *sql.DB
}

// OpenSQLiteTier opens (and if needed creates) the local database
func OpenSQLiteTier(path string) (*SQLiteTier, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &SQLiteTier{db: db}, nil
}

func (t *SQLiteTier) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	query := "SELECT value FROM kv WHERE key = ?"
	err := t.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *SQLiteTier) Write(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	_, err := t.db.ExecContext(ctx, query, key, value)
	return err
}

func (t *SQLiteTier) Remove(ctx context.Context, key string) error {
	_, err := t.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	return err
}

func (t *SQLiteTier) Name() string {
	return "local"
}

func (t *SQLiteTier) Close() error {
	return t.db.Close()
}
