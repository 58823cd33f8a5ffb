package session

import (
	"context"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
)

// Guard clears identity state: on explicit sign-out, and when a persisted
// identity turns out to belong to someone else than the live session.
type Guard struct {
	store *Store
}

// SignOut signs out remotely (bounded, best effort) and then always clears
// the local identity. The returned error only reports the remote call;
// the local clear has already happened when it is returned.
func (g *Guard) SignOut(ctx context.Context) error {
	s := g.store
	log := logger.Ctx(ctx, s.logger)

	_, remoteErr := callProvider(ctx, s.signOutTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.provider.SignOut(ctx)
	})
	if remoteErr != nil {
		log.Warn("remote sign-out failed, clearing locally", "error", remoteErr)
	}

	g.clearLocal(ctx, domain.StatusUnauthenticated)
	s.metrics.RecordSignOut(remoteErr)
	log.Info("signed out", "remote_ok", remoteErr == nil)
	return remoteErr
}

// OnMismatch clears the local identity without contacting the provider:
// the remote session is valid, just not for the cached identity.
//
// Inside a bootstrap run the status stays loading so the run can proceed
// as if starting fresh; otherwise the store becomes unauthenticated.
func (g *Guard) OnMismatch(ctx context.Context) {
	s := g.store
	s.metrics.IncMismatch()

	next := domain.StatusUnauthenticated
	if s.bootstrapping.Load() {
		next = domain.StatusLoading
	}
	g.clearLocal(ctx, next)
	logger.Ctx(ctx, s.logger).Warn("identity mismatch, local identity cleared",
		"error", domain.ErrIdentityMismatch)
}

// clearLocal drops the snapshot and cache, rewrites the persisted record
// without a snapshot and removes the user-scoped keys. Preferences are
// device-level and survive.
func (g *Guard) clearLocal(ctx context.Context, next domain.Status) {
	s := g.store

	s.mu.Lock()
	s.gen++
	s.cache.Clear()
	cur := s.current()
	cur.Snapshot = nil
	cur.Status = next
	s.publish(cur)
	s.persistLocked(ctx, cur)
	s.removeScopedLocked(ctx)
	s.mu.Unlock()

	s.notify()
}

// UserScopedKeys returns the namespaced keys cleared with the identity.
func (g *Guard) UserScopedKeys() []string {
	s := g.store
	if s.persister == nil {
		return nil
	}
	keys := make([]string, 0, len(s.userScopedKeys))
	for _, name := range s.userScopedKeys {
		keys = append(keys, s.persister.ScopedKey(name))
	}
	return keys
}

func (s *Store) removeScopedLocked(ctx context.Context) {
	keys := s.guard.UserScopedKeys()
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()
	if err := s.persister.Clear(ctx, keys); err != nil {
		logger.Ctx(ctx, s.logger).Error("clear user-scoped keys failed", "error", err)
	}
}
