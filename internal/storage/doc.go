// Package storage provides the persisted key-value stores idbridge keeps
// its session record in.
//
// Every backend implements KV, a string-keyed store shaped like a
// browser's localStorage: GetItem / SetItem / RemoveItem. Backends:
//
//   - memory: process-local map, lost on exit (tests, ephemeral runs)
//   - badger: embedded LSM store under a data directory
//   - sqlite: a single ItemTable(key, value) file
//   - redis:  shared store, keys namespaced by a prefix
//
// Open picks a backend by engine name.
package storage
