package domain

import "testing"

func TestParseInternalID(t *testing.T) {
	tests := []struct {
		in      string
		want    InternalID
		wantErr bool
	}{
		{"42", 42, false},
		{" 7 ", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInternalID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInternalID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseInternalID(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewOpaqueID(t *testing.T) {
	// Numeric-looking and UUID-looking strings stay opaque.
	for _, in := range []string{"123", "8f14e45f-ceea-467f-a0e6-0d0b8a1e0f6a", "abc"} {
		id, err := NewOpaqueID(in)
		if err != nil {
			t.Fatalf("NewOpaqueID(%q) error = %v", in, err)
		}
		if id.String() != in {
			t.Errorf("NewOpaqueID(%q) = %q", in, id)
		}
	}

	if _, err := NewOpaqueID("   "); !IsDomainError(err, ErrMissingArgument.Code) {
		t.Errorf("NewOpaqueID(blank) error = %v, want missing argument", err)
	}
}

func TestIdentifierUnion(t *testing.T) {
	ids := []Identifier{InternalID(5), OpaqueID("abc"), InternalID(0), OpaqueID("")}
	valid := []bool{true, true, false, false}
	for i, id := range ids {
		if id.Valid() != valid[i] {
			t.Errorf("%T(%q).Valid() = %v, want %v", id, id.String(), id.Valid(), valid[i])
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@X.com "); got != "a@x.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}
