package directory

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/yndnr/idbridge/internal/core/domain"
)

// SQLiteReader reads users from a local sqlite replica of the users table.
type SQLiteReader struct {
	db    *sql.DB
	owned bool
}

// OpenSQLiteReader opens the sqlite file at path read-only.
func OpenSQLiteReader(ctx context.Context, path string) (*SQLiteReader, error) {
	if path == "" {
		return nil, fmt.Errorf("directory: sqlite path is required")
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("directory: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("directory: ping sqlite: %w", err)
	}
	return &SQLiteReader{db: db, owned: true}, nil
}

// NewSQLiteReader wraps an open database. The caller keeps ownership.
func NewSQLiteReader(db *sql.DB) *SQLiteReader {
	return &SQLiteReader{db: db}
}

// ByOpaqueID reads the user whose auth_id is id.
func (r *SQLiteReader) ByOpaqueID(ctx context.Context, id domain.OpaqueID) (*domain.UserRow, error) {
	if !id.Valid() {
		return nil, domain.ErrMissingArgument.WithDetails("opaque id is empty")
	}
	return r.queryOne(ctx, "auth_id = ?", id.String(), "auth_id "+id.String())
}

// ByEmail reads the single user with email, compared case-insensitively.
func (r *SQLiteReader) ByEmail(ctx context.Context, email string) (*domain.UserRow, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrMissingArgument.WithDetails("email is empty")
	}
	return r.queryOne(ctx, "lower(email) = lower(?)", email, "email")
}

func (r *SQLiteReader) queryOne(ctx context.Context, where, arg, what string) (*domain.UserRow, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 2`

	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("directory: query users: %w", err)
	}
	defer rows.Close()

	var found []*domain.UserRow
	for rows.Next() {
		row, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: scan users: %w", err)
		}
		found = append(found, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: scan users: %w", err)
	}
	return pickOne(found, what)
}

// Close closes a database opened by OpenSQLiteReader.
func (r *SQLiteReader) Close() {
	if r.owned {
		r.db.Close()
	}
}
