package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteKV implements KV on a single sqlite table, laid out like a
// browser's localStorage file: ItemTable(key TEXT PRIMARY KEY, value TEXT).
type SQLiteKV struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ItemTable (
	key   TEXT PRIMARY KEY,
	value TEXT
)`

// NewSQLiteKV opens (creating if needed) the sqlite file at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteKV(ctx context.Context, path string) (*SQLiteKV, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// One connection: sqlite serializes writers anyway, and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create table: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

// GetItem returns the value stored under key.
func (s *SQLiteKV) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM ItemTable WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: get %q: %w", key, err)
	}
	if !value.Valid {
		return "", false, nil
	}
	return value.String, true, nil
}

// SetItem stores value under key.
func (s *SQLiteKV) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO ItemTable (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("sqlite: set %q: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key.
func (s *SQLiteKV) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM ItemTable WHERE key = ?", key); err != nil {
		return fmt.Errorf("sqlite: remove %q: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
