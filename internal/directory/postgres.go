package directory

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
)

// DefaultPingTimeout bounds the connectivity check of NewDBPool.
const DefaultPingTimeout = 3 * time.Second

// NewDBPool builds a pgxpool and validates connectivity.
func NewDBPool(ctx context.Context, dsn string, pingTimeout time.Duration) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	// Fallback reads are rare; a small pool is enough.
	pcfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}
	if err := PingDB(ctx, pool, pingTimeout); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PingDB checks that a connection can be acquired within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// PostgresReader reads users from <schema>.users over pgxpool.
//
// The pool is owned by the caller unless WithOwnedPool is given.
type PostgresReader struct {
	pool   *pgxpool.Pool
	schema string
	owned  bool
	logger *slog.Logger
}

// PostgresOption configures the reader.
type PostgresOption func(*PostgresReader) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema of the users table. An empty schema keeps
// the default.
func WithSchema(schema string) PostgresOption {
	return func(r *PostgresReader) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return nil
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("directory: invalid schema identifier %q", schema)
		}
		r.schema = schema
		return nil
	}
}

// WithOwnedPool makes Close close the pool.
func WithOwnedPool() PostgresOption {
	return func(r *PostgresReader) error {
		r.owned = true
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PostgresOption {
	return func(r *PostgresReader) error {
		r.logger = l
		return nil
	}
}

// NewPostgresReader constructs a PostgresReader.
func NewPostgresReader(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresReader, error) {
	r := &PostgresReader{pool: pool, schema: DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.pool == nil {
		return nil, domain.ErrMissingArgument.WithDetails("directory: nil pool")
	}
	r.logger = logger.OrDefault(r.logger).With("component", "directory", "driver", DriverPostgres)
	return r, nil
}

// ByOpaqueID reads the user whose auth_id is id.
func (r *PostgresReader) ByOpaqueID(ctx context.Context, id domain.OpaqueID) (*domain.UserRow, error) {
	if !id.Valid() {
		return nil, domain.ErrMissingArgument.WithDetails("opaque id is empty")
	}
	return r.queryOne(ctx, "auth_id = $1", id.String(), "auth_id "+id.String())
}

// ByEmail reads the single user with email, compared case-insensitively.
func (r *PostgresReader) ByEmail(ctx context.Context, email string) (*domain.UserRow, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrMissingArgument.WithDetails("email is empty")
	}
	return r.queryOne(ctx, "lower(email) = lower($1)", email, "email")
}

func (r *PostgresReader) queryOne(ctx context.Context, where, arg, what string) (*domain.UserRow, error) {
	q := `SELECT ` + userColumns + ` FROM ` + pgIdent(r.schema, "users") + ` WHERE ` + where + ` LIMIT 2`

	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("directory: query users: %w", err)
	}
	defer rows.Close()

	found, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("directory: scan users: %w", err)
	}
	row, err := pickOne(found, what)
	if err != nil {
		r.logger.Debug("direct read found no single user", "lookup", what, "matches", len(found))
		return nil, err
	}
	return row, nil
}

func collect(rows pgx.Rows) ([]*domain.UserRow, error) {
	var out []*domain.UserRow
	for rows.Next() {
		row, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close closes an owned pool.
func (r *PostgresReader) Close() {
	if r.owned {
		r.pool.Close()
	}
}

// pgIdent quotes a schema-qualified identifier.
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}
