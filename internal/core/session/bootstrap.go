package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
	"github.com/yndnr/idbridge/internal/telemetry/metric"
)

// Bootstrap establishes the session state. Concurrent callers share the
// in-flight run and all receive its result. The run is not cancelled by
// ctx; every wait inside it is bounded by its own timeout instead.
//
// Provider, sync and resolution failures are absorbed into the returned
// state and never returned as errors.
func (s *Store) Bootstrap(ctx context.Context) (domain.State, error) {
	ch := s.flight.DoChan("bootstrap", func() (any, error) {
		s.bootstrapping.Store(true)
		defer s.bootstrapping.Store(false)
		return s.runBootstrap(context.WithoutCancel(ctx)), nil
	})
	res := <-ch
	if res.Err != nil {
		return s.State(), res.Err
	}
	st := res.Val.(domain.State)
	st.Snapshot = st.Snapshot.Clone()
	return st, nil
}

func (s *Store) runBootstrap(ctx context.Context) domain.State {
	start := time.Now()
	ctx = logger.WithRunID(ctx, ulid.Make().String())
	log := logger.Ctx(ctx, s.logger)

	outcome := s.bootstrapSteps(ctx, log)

	elapsed := time.Since(start)
	s.metrics.RecordBootstrap(outcome, elapsed)
	st := s.State()
	log.Info("bootstrap finished",
		"outcome", outcome,
		"status", st.Status.String(),
		"elapsed", elapsed)
	return st
}

func (s *Store) bootstrapSteps(ctx context.Context, log *slog.Logger) string {
	// 1. Enter loading
	s.setStatus(domain.StatusLoading)
	s.StartHydration(ctx)

	// 2. Wait for hydration, bounded
	if !s.hydration.Wait(ctx, s.hydrationTimeout) {
		s.metrics.RecordHydration("timeout")
		log.Warn("hydration wait timed out, continuing", "timeout", s.hydrationTimeout)
	}

	// 3. Safety-net read of the persisted record
	if s.Snapshot() == nil {
		s.recoverPersisted(ctx, log)
	}

	// Optimistic authentication from the stale snapshot
	gen := s.generation()
	if s.Snapshot() != nil {
		s.setStatus(domain.StatusAuthenticated)
		log.Debug("optimistically authenticated from persisted snapshot")
	}

	// 4. Live session check, bounded
	live, err := callProvider(ctx, s.providerTimeout, s.provider.GetSession)

	// 5. Provider error or timeout
	if err != nil {
		if errors.Is(err, domain.ErrProviderTimeout) {
			s.metrics.RecordProviderCall(metric.ProviderTimeout)
		} else {
			s.metrics.RecordProviderCall(metric.ProviderError)
		}
		log.Warn("live session check failed", "error", err)
		return s.settleWithoutSession(gen)
	}

	// 6. Definitive "no session"
	if live == nil || !live.OpaqueID.Valid() {
		s.metrics.RecordProviderCall(metric.ProviderNoSession)
		log.Info("provider reports no session")
		return s.settleWithoutSession(gen)
	}
	s.metrics.RecordProviderCall(metric.ProviderSession)

	// 7. Identity mismatch
	if snap := s.Snapshot(); snap != nil && !snap.BelongsTo(live) {
		log.Warn("persisted identity does not match live session",
			"persisted_email", snap.Email, "email", live.Email,
			"persisted_opaque_id", snap.OpaqueID.String(), "opaque_id", live.OpaqueID.String())
		s.guard.OnMismatch(ctx)
		gen = s.generation()
	}

	// 8. Reconcile ids
	res, err := s.resolver.ResolveSession(ctx, live)
	if err == nil {
		if s.commitResolved(ctx, gen, res.User) {
			return metric.OutcomeConfirmed
		}
		return metric.OutcomeUnauthenticated
	}

	log.Warn("identity resolution failed", "error", err)
	return s.settleUnresolved(gen, live)
}

// recoverPersisted reads the record directly and adopts its snapshot if
// hydration has not produced one.
func (s *Store) recoverPersisted(ctx context.Context, log *slog.Logger) {
	if s.persister == nil {
		return
	}
	gen := s.generation()
	loadCtx, cancel := context.WithTimeout(ctx, s.hydrationTimeout)
	rec, err := s.persister.Load(loadCtx)
	cancel()
	if err != nil {
		log.Warn("direct read of persisted record failed", "error", err)
		return
	}
	if rec == nil || rec.Snapshot == nil {
		return
	}

	s.mu.Lock()
	cur := s.current()
	adopted := false
	if s.gen == gen && cur.Snapshot == nil {
		cur.Snapshot = rec.Snapshot.Clone()
		cur.Onboarded = rec.Preferences.Onboarded
		s.publish(cur)
		adopted = true
	}
	s.mu.Unlock()

	if adopted {
		log.Info("adopted persisted snapshot from direct read")
		s.notify()
	}
}

// settleWithoutSession keeps a user with a snapshot authenticated and
// moves everyone else to unauthenticated.
func (s *Store) settleWithoutSession(gen uint64) string {
	s.mu.Lock()
	cur := s.current()
	if s.gen != gen {
		s.mu.Unlock()
		return metric.OutcomeUnauthenticated
	}
	outcome := metric.OutcomeUnauthenticated
	if cur.Snapshot != nil {
		cur.Status = domain.StatusAuthenticated
		outcome = metric.OutcomeOptimisticKept
	} else {
		cur.Status = domain.StatusUnauthenticated
	}
	s.publish(cur)
	s.mu.Unlock()

	s.notify()
	return outcome
}

// commitResolved publishes the resolved row as an authenticated snapshot.
// It reports false when the identity was cleared during the run.
func (s *Store) commitResolved(ctx context.Context, gen uint64, row *domain.UserRow) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	cur := s.current()
	if row != nil && (cur.Snapshot == nil || cur.Snapshot.InternalID != row.InternalID ||
		cur.Snapshot.OpaqueID != row.OpaqueID || !cur.Snapshot.Resolved) {
		cur.Snapshot = domain.SnapshotFromRow(row)
		s.persistLocked(ctx, cur)
	}
	cur.Status = domain.StatusAuthenticated
	s.publish(cur)
	s.mu.Unlock()

	s.notify()
	return true
}

// settleUnresolved keeps a stale snapshot, or builds a minimal one from
// the live session. The minimal snapshot is not persisted.
func (s *Store) settleUnresolved(gen uint64, live *domain.LiveSession) string {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return metric.OutcomeUnauthenticated
	}
	cur := s.current()
	outcome := metric.OutcomeOptimisticKept
	if cur.Snapshot == nil {
		cur.Snapshot = domain.MinimalSnapshot(live)
		outcome = metric.OutcomeMinimal
	}
	cur.Status = domain.StatusAuthenticated
	s.publish(cur)
	s.mu.Unlock()

	s.notify()
	return outcome
}

func (s *Store) setStatus(status domain.Status) {
	s.mu.Lock()
	cur := s.current()
	if cur.Status == status {
		s.mu.Unlock()
		return
	}
	cur.Status = status
	s.publish(cur)
	s.mu.Unlock()

	s.notify()
}
