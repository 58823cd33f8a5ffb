package session

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/idbridge/internal/core/domain"
)

// hydration is a one-shot gate closed when the persisted record load has
// completed once.
type hydration struct {
	once sync.Once
	done chan struct{}
}

func newHydration() *hydration {
	return &hydration{done: make(chan struct{})}
}

// mark closes the gate. Later calls are no-ops.
func (h *hydration) mark() {
	h.once.Do(func() { close(h.done) })
}

// Done is closed once hydration has completed.
func (h *hydration) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until hydration completes, ctx ends or timeout elapses.
// It reports whether hydration completed.
func (h *hydration) Wait(ctx context.Context, timeout time.Duration) bool {
	select {
	case <-h.done:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// StartHydration starts the asynchronous load of the persisted record.
// Only the first call has an effect. Without a persister the store is
// hydrated immediately.
func (s *Store) StartHydration(ctx context.Context) {
	s.hydrateOnce.Do(func() {
		if s.persister == nil {
			s.finishHydration(nil, s.generation())
			return
		}
		gen := s.generation()
		ctx := context.WithoutCancel(ctx)
		go func() {
			rec, err := s.persister.Load(ctx)
			switch {
			case err != nil:
				s.metrics.RecordHydration("error")
				s.logger.Warn("hydration failed", "error", err)
			case rec == nil:
				s.metrics.RecordHydration("empty")
			default:
				s.metrics.RecordHydration("found")
			}
			s.finishHydration(rec, gen)
		}()
	})
}

// HydrationDone is closed once the persisted record load has completed.
func (s *Store) HydrationDone() <-chan struct{} {
	return s.hydration.Done()
}

// WaitHydrated waits for hydration, bounded by timeout.
func (s *Store) WaitHydrated(ctx context.Context, timeout time.Duration) bool {
	return s.hydration.Wait(ctx, timeout)
}

// finishHydration adopts rec unless the identity was cleared since the
// load started, then flips the hydration flag.
func (s *Store) finishHydration(rec *domain.Record, gen uint64) {
	s.mu.Lock()
	next := s.current()
	if rec != nil && s.gen == gen {
		if next.Snapshot == nil && rec.Snapshot != nil {
			next.Snapshot = rec.Snapshot.Clone()
		}
		next.Onboarded = rec.Preferences.Onboarded
	}
	next.Hydrated = true
	s.publish(next)
	s.mu.Unlock()

	s.hydration.mark()
	s.notify()
}
