package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/core/resolver"
)

// Driver names accepted by Open.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultSchema is the postgres schema holding the users table.
const DefaultSchema = "public"

// Config configures the direct-read fallback.
type Config struct {
	Driver  string
	DSN     string
	Schema  string
	Timeout time.Duration
}

// Reader is a closable direct reader.
type Reader interface {
	resolver.DirectReader
	Close()
}

// userColumns is the column list shared by every reader. Nullable text
// columns are coalesced so scans need no null wrappers.
const userColumns = `id, COALESCE(auth_id, ''), COALESCE(email, ''), COALESCE(username, ''),
	COALESCE(display_name, ''), COALESCE(avatar_url, ''), COALESCE(bio, ''),
	COALESCE(verified, FALSE), COALESCE(followers_count, 0), COALESCE(following_count, 0),
	COALESCE(posts_count, 0)`

// scanner is satisfied by pgx.Rows and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*domain.UserRow, error) {
	var (
		row    domain.UserRow
		id     int64
		authID string
	)
	err := s.Scan(&id, &authID, &row.Email, &row.Username, &row.DisplayName,
		&row.AvatarURL, &row.Bio, &row.Verified,
		&row.Counts.Followers, &row.Counts.Following, &row.Counts.Posts)
	if err != nil {
		return nil, err
	}
	row.InternalID = domain.InternalID(id)
	row.OpaqueID = domain.OpaqueID(authID)
	return &row, nil
}

// pickOne returns the single match of a LIMIT 2 query.
func pickOne(rows []*domain.UserRow, what string) (*domain.UserRow, error) {
	switch len(rows) {
	case 0:
		return nil, domain.ErrUserNotFound.WithDetails("no user with " + what)
	case 1:
		return rows[0], nil
	default:
		return nil, domain.ErrAmbiguousUser.WithDetails("more than one user with " + what)
	}
}

// Open builds the reader selected by cfg.Driver. It returns (nil, nil) for
// DriverNone or an empty driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Reader, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverPostgres:
		pool, err := NewDBPool(ctx, cfg.DSN, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("directory: connect postgres: %w", err)
		}
		r, err := NewPostgresReader(pool, WithSchema(cfg.Schema), WithOwnedPool(), WithLogger(logger))
		if err != nil {
			pool.Close()
			return nil, err
		}
		return r, nil
	case DriverSQLite:
		r, err := OpenSQLiteReader(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("directory: unknown driver %q", cfg.Driver)
	}
}
