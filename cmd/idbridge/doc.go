// Package main provides the entry point for idbridge.
//
// idbridge keeps a device's view of "who is signed in" consistent with the
// auth provider and the application's user table:
//
//   - bootstrap reconciles the persisted identity with the live session
//   - whoami and resolve map provider ids to application user ids
//   - signout clears every piece of user-scoped local state
//   - watch keeps running, re-bootstrapping on SIGHUP and serving metrics
//
// Usage:
//
//	idbridge [global flags] command [flags]
//	idbridge token set "$ACCESS_TOKEN"
//	idbridge -o json whoami
package main
