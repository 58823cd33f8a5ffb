// Package cmap provides a sharded concurrent map keyed by strings.
//
// Keys are spread across shards with murmur3, each shard guarded by its
// own RWMutex. Reads (Get, Has) take the shard read lock; writes take the
// shard write lock. Clear swaps every shard's map, so it is safe to call
// on an empty map and safe to call repeatedly.
//
// Usage:
//
//	m := cmap.New[domain.OpaqueID, domain.InternalID]()
//	m.Set("abc", 42)
//	id, ok := m.Get("abc")
package cmap
