// Package domain defines the shared identity types for idbridge.
//
// Everything in this package is a pure value type without IO
// dependencies. It is the one package that both the resolver and the
// session store import, so neither needs to import the other:
//
//   - Identifier: InternalID / OpaqueID tagged union built at the boundary
//   - Snapshot: the durable record of the last resolved identity
//   - LiveSession: what the auth provider reports right now
//   - State: the immutable status/snapshot pair published to observers
//   - Errors: coded domain errors
package domain
