// Package session implements the Session Store: the state machine that
// owns the session status, the in-memory snapshot and the hydration
// lifecycle, and the Logout/Isolation Guard that clears them.
//
// # States
//
// Every boot starts in loading. Bootstrap moves the store to
// authenticated (optimistically from a persisted snapshot, then confirmed
// against the live session) or unauthenticated. Only an explicit
// sign-out clears a persisted identity: provider errors, timeouts and
// "no session" answers keep a user who has a snapshot authenticated.
//
// # Bootstrap
//
//  1. status -> loading
//  2. wait for hydration, bounded
//  3. if no snapshot is visible, read the persisted record once more
//  4. ask the provider for the live session, bounded
//  5. provider error or timeout: keep the snapshot if any
//  6. no session: keep the snapshot if any
//  7. live session: on email mismatch run the isolation guard first
//  8. resolve ids; on failure keep the stale snapshot or fall back to a
//     minimal unresolved snapshot built from the live session
//
// Concurrent Bootstrap calls share one run. Status and snapshot are
// published together as one immutable State.
package session
