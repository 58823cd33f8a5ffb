// Package resolver turns a provider-issued opaque id into the application's
// internal integer id.
//
// Resolution order, first success wins:
//
//  1. the held session snapshot, when it belongs to the same opaque id
//  2. the identity cache
//  3. profile sync, retried once immediately on failure
//  4. direct read by opaque id, then by email
//
// When nothing produces an id the resolver fails with
// domain.ErrUnresolvedIdentity; it never hands out a zero id. Without a
// snapshot holder, successful resolutions are written to the cache. With
// one, they are offered to the holder, which writes the cache only for rows
// it accepts, so a resolution finishing after a sign-out leaves no trace.
//
// The resolver does not import the session store. The store is reached
// through SnapshotHolder, which *session.Store implements.
package resolver
