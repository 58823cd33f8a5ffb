// Package memory provides a process-local KV store.
//
// Values live in a sharded concurrent map and are lost when the process
// exits. It backs tests and ephemeral runs (storage.engine: memory).
package memory
