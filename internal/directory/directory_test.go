package directory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
)

func TestPickOne(t *testing.T) {
	a := &domain.UserRow{InternalID: 1}
	b := &domain.UserRow{InternalID: 2}

	if _, err := pickOne(nil, "x"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("pickOne(none) error = %v", err)
	}
	if row, err := pickOne([]*domain.UserRow{a}, "x"); err != nil || row != a {
		t.Errorf("pickOne(one) = %v, %v", row, err)
	}
	if _, err := pickOne([]*domain.UserRow{a, b}, "x"); !errors.Is(err, domain.ErrAmbiguousUser) {
		t.Errorf("pickOne(two) error = %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	for _, driver := range []string{"", DriverNone} {
		r, err := Open(ctx, Config{Driver: driver}, logger.Discard())
		if err != nil || r != nil {
			t.Errorf("Open(%q) = %v, %v; want nil, nil", driver, r, err)
		}
	}

	if _, err := Open(ctx, Config{Driver: "oracle"}, logger.Discard()); err == nil {
		t.Error("Open(oracle) succeeded")
	}

	missing := filepath.Join(t.TempDir(), "missing", "users.db")
	if r, err := Open(ctx, Config{Driver: DriverSQLite, DSN: missing}, logger.Discard()); err == nil || r != nil {
		t.Errorf("Open(missing sqlite) = %v, %v; want a nil reader and an error", r, err)
	}

	r, err := Open(ctx, Config{Driver: DriverSQLite, DSN: seedUsersDB(t)}, logger.Discard())
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	defer r.Close()
	if _, err := r.ByOpaqueID(ctx, "abc"); err != nil {
		t.Errorf("ByOpaqueID() error = %v", err)
	}
}

func TestWithSchema(t *testing.T) {
	tests := []struct {
		schema  string
		want    string
		wantErr bool
	}{
		{"", DefaultSchema, false},
		{"app", "app", false},
		{"app; DROP TABLE users", "", true},
		{"1bad", "", true},
	}
	for _, tt := range tests {
		r := &PostgresReader{schema: DefaultSchema}
		err := WithSchema(tt.schema)(r)
		if (err != nil) != tt.wantErr {
			t.Errorf("WithSchema(%q) error = %v, wantErr %v", tt.schema, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && r.schema != tt.want {
			t.Errorf("WithSchema(%q) schema = %q, want %q", tt.schema, r.schema, tt.want)
		}
	}
}

func TestNewPostgresReader_NilPool(t *testing.T) {
	if _, err := NewPostgresReader(nil); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("NewPostgresReader(nil) error = %v, want ErrMissingArgument", err)
	}
}

func TestPgIdent(t *testing.T) {
	if got := pgIdent("app", "users"); got != `"app"."users"` {
		t.Errorf("pgIdent() = %s", got)
	}
}
