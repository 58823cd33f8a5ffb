package memory

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/yndnr/idbridge/pkg/cmap"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("memory store closed")

// Store is an in-memory string key-value store.
type Store struct {
	items  *cmap.Map[string, string]
	closed atomic.Bool
}

// New creates an empty store.
func New() *Store {
	return &Store{items: cmap.New[string, string]()}
}

// GetItem returns the value stored under key.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrClosed
	}
	v, ok := s.items.Get(key)
	return v, ok, nil
}

// SetItem stores value under key.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.items.Set(key, value)
	return nil
}

// RemoveItem deletes key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.items.Delete(key)
	return nil
}

// Keys returns every stored key. Order is unspecified.
func (s *Store) Keys() []string {
	keys := make([]string, 0, s.items.Count())
	s.items.Range(func(k, _ string) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
