package domain

import (
	"strconv"
	"strings"
)

// Identifier is either an InternalID or an OpaqueID.
//
// Identifiers are built once at the system boundary (ParseInternalID,
// NewOpaqueID) so that nothing downstream has to guess a string's format.
type Identifier interface {
	isIdentifier()
	String() string
	Valid() bool
}

// InternalID is the application data store's integer primary key for a user.
// The zero value means "unset" and is never a valid target for writes.
type InternalID int64

func (InternalID) isIdentifier() {}

// Valid reports whether the id is a positive integer.
func (id InternalID) Valid() bool { return id > 0 }

func (id InternalID) String() string { return strconv.FormatInt(int64(id), 10) }

// OpaqueID is the auth provider's session subject. Its format is not
// guaranteed: it may look numeric, like a UUID, or like neither.
type OpaqueID string

func (OpaqueID) isIdentifier() {}

// Valid reports whether the id is non-empty.
func (id OpaqueID) Valid() bool { return strings.TrimSpace(string(id)) != "" }

func (id OpaqueID) String() string { return string(id) }

// ParseInternalID parses a decimal string into an InternalID.
func ParseInternalID(s string) (InternalID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, ErrInvalidArgument.WithDetails("internal id is not an integer").WithCause(err)
	}
	id := InternalID(n)
	if !id.Valid() {
		return 0, ErrInvalidArgument.WithDetails("internal id must be positive")
	}
	return id, nil
}

// NewOpaqueID validates and wraps a provider-issued identifier.
// Surrounding whitespace is trimmed; the content is otherwise kept verbatim.
func NewOpaqueID(s string) (OpaqueID, error) {
	id := OpaqueID(strings.TrimSpace(s))
	if !id.Valid() {
		return "", ErrMissingArgument.WithDetails("opaque id is empty")
	}
	return id, nil
}

// NormalizeEmail returns the comparison form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
