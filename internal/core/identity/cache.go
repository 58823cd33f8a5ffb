// Package identity provides the process-local Identity Cache.
//
// The cache memoizes opaque id -> internal id resolutions and keeps one slot
// for the last resolved user row. It is never persisted and correctness
// never depends on it: a miss is a normal outcome, not an error.
package identity

import (
	"sync"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/pkg/cmap"
)

// Cache maps opaque ids to internal ids.
type Cache struct {
	ids *cmap.Map[domain.OpaqueID, domain.InternalID]

	mu      sync.RWMutex
	lastRow *domain.UserRow
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		ids: cmap.New[domain.OpaqueID, domain.InternalID](),
	}
}

// Get returns the cached internal id for opaqueID.
func (c *Cache) Get(opaqueID domain.OpaqueID) (domain.InternalID, bool) {
	if !opaqueID.Valid() {
		return 0, false
	}
	return c.ids.Get(opaqueID)
}

// Put records a resolution. Invalid ids are ignored.
func (c *Cache) Put(opaqueID domain.OpaqueID, internalID domain.InternalID) {
	if !opaqueID.Valid() || !internalID.Valid() {
		return
	}
	c.ids.Set(opaqueID, internalID)
}

// LastRow returns a copy of the last resolved user row.
func (c *Cache) LastRow() (*domain.UserRow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastRow == nil {
		return nil, false
	}
	return c.lastRow.Clone(), true
}

// SetLastRow stores a copy of row. A row without a valid internal id is
// ignored.
func (c *Cache) SetLastRow(row *domain.UserRow) {
	if row == nil || !row.InternalID.Valid() {
		return
	}
	c.mu.Lock()
	c.lastRow = row.Clone()
	c.mu.Unlock()
}

// Remember stores both the mapping and the row.
func (c *Cache) Remember(row *domain.UserRow) {
	if row == nil {
		return
	}
	c.Put(row.OpaqueID, row.InternalID)
	c.SetLastRow(row)
}

// Clear drops every entry. It is idempotent.
func (c *Cache) Clear() {
	c.ids.Clear()
	c.mu.Lock()
	c.lastRow = nil
	c.mu.Unlock()
}

// Len returns the number of cached mappings.
func (c *Cache) Len() int {
	return c.ids.Count()
}
