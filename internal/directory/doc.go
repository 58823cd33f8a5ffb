// Package directory reads application user rows straight from the
// application database. The resolver uses it as the last fallback when the
// profile sync endpoint cannot produce an internal id.
//
// Readers never write. An email lookup that matches more than one row is
// reported as ErrAmbiguousUser rather than guessing.
package directory
