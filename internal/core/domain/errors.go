package domain

import (
	"errors"
	"fmt"
)

// DomainError represents an identity-layer error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "IDB-IDEN-4220")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Provider Errors (PROV)
// ============================================================================

var (
	// ErrProviderTimeout indicates the auth provider did not answer in time.
	// It is handled exactly like ErrProviderError, never like ErrNoSession.
	ErrProviderTimeout = NewDomainError("IDB-PROV-5040", "auth provider timeout")

	// ErrProviderError indicates a network or server failure talking to the
	// auth provider, distinct from a valid "no session" answer.
	ErrProviderError = NewDomainError("IDB-PROV-5020", "auth provider error")

	// ErrNoSession indicates the provider confirmed there is no session.
	ErrNoSession = NewDomainError("IDB-PROV-4040", "no session")
)

// ============================================================================
// Identity Errors (SYNC / IDEN)
// ============================================================================

var (
	// ErrSyncFailed indicates the profile sync call failed after its retry.
	ErrSyncFailed = NewDomainError("IDB-SYNC-5020", "profile sync failed")

	// ErrUnresolvedIdentity indicates no internal identifier could be produced.
	ErrUnresolvedIdentity = NewDomainError("IDB-IDEN-4220", "unresolved identity")

	// ErrIdentityMismatch indicates the persisted and live identities disagree.
	ErrIdentityMismatch = NewDomainError("IDB-IDEN-4090", "identity mismatch")

	// ErrUserNotFound indicates a direct read found no matching user row.
	ErrUserNotFound = NewDomainError("IDB-DIR-4040", "user not found")

	// ErrAmbiguousUser indicates a direct read matched more than one row.
	ErrAmbiguousUser = NewDomainError("IDB-DIR-4090", "ambiguous user match")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrStorage indicates a persisted key-value store failure.
	ErrStorage = NewDomainError("IDB-STOR-5001", "storage error")

	// ErrRecordCorrupt indicates the persisted record could not be decoded.
	ErrRecordCorrupt = NewDomainError("IDB-STOR-4220", "persisted record corrupt")
)

// ============================================================================
// System / Argument Errors
// ============================================================================

var (
	// ErrInternal indicates an internal error.
	ErrInternal = NewDomainError("IDB-SYS-5000", "internal error")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("IDB-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("IDB-ARG-1002", "missing required argument")
)
