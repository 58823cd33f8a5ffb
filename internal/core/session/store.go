package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/core/identity"
	"github.com/yndnr/idbridge/internal/core/resolver"
	"github.com/yndnr/idbridge/internal/storage/persist"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
	"github.com/yndnr/idbridge/internal/telemetry/metric"
)

// Default timeouts.
const (
	DefaultHydrationTimeout = 3 * time.Second
	DefaultProviderTimeout  = 8 * time.Second
	DefaultSignOutTimeout   = 5 * time.Second
	DefaultPersistTimeout   = 2 * time.Second
)

// Provider is the auth provider collaborator.
type Provider interface {
	// GetSession returns the live session. (nil, nil) means the provider
	// confirmed there is no session.
	GetSession(ctx context.Context) (*domain.LiveSession, error)

	// SignOut ends the remote session.
	SignOut(ctx context.Context) error
}

// IdentityResolver resolves a live session to an internal id.
// *resolver.Resolver implements it.
type IdentityResolver interface {
	ResolveSession(ctx context.Context, live *domain.LiveSession) (*resolver.Result, error)
}

// Deps are the collaborators of a Store.
type Deps struct {
	Provider  Provider
	Resolver  IdentityResolver
	Cache     *identity.Cache
	Persister *persist.Persister
}

// Store is the session state machine. Construct one per process and pass
// it to everything that needs identity.
type Store struct {
	provider  Provider
	resolver  IdentityResolver
	cache     *identity.Cache
	persister *persist.Persister
	guard     *Guard

	logger  *slog.Logger
	metrics *metric.Registry

	hydrationTimeout time.Duration
	providerTimeout  time.Duration
	signOutTimeout   time.Duration
	persistTimeout   time.Duration
	userScopedKeys   []string

	// mu serializes state transitions and persisted writes.
	mu    sync.Mutex
	state atomic.Pointer[domain.State]
	// gen increments on every identity clear.
	gen uint64

	notifyMu  sync.Mutex
	subMu     sync.Mutex
	listeners []listener
	nextSub   uint64

	hydration   *hydration
	hydrateOnce sync.Once

	flight        singleflight.Group
	bootstrapping atomic.Bool
}

type listener struct {
	id uint64
	fn func(domain.State)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Store) { s.metrics = m }
}

// WithHydrationTimeout bounds the bootstrap wait for hydration.
func WithHydrationTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.hydrationTimeout = d
		}
	}
}

// WithProviderTimeout bounds the live session check.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.providerTimeout = d
		}
	}
}

// WithSignOutTimeout bounds the remote sign-out.
func WithSignOutTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.signOutTimeout = d
		}
	}
}

// WithPersistTimeout bounds each persisted write.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithUserScopedKeys sets the allow-list of extra persisted keys cleared
// on sign-out and mismatch. Names are namespaced by the persister.
func WithUserScopedKeys(names ...string) Option {
	return func(s *Store) { s.userScopedKeys = append([]string(nil), names...) }
}

// New creates a Store in the loading state.
func New(deps Deps, opts ...Option) (*Store, error) {
	if deps.Provider == nil {
		return nil, domain.ErrMissingArgument.WithDetails("provider is required")
	}
	if deps.Resolver == nil {
		return nil, domain.ErrMissingArgument.WithDetails("resolver is required")
	}

	s := &Store{
		provider:         deps.Provider,
		resolver:         deps.Resolver,
		cache:            deps.Cache,
		persister:        deps.Persister,
		hydrationTimeout: DefaultHydrationTimeout,
		providerTimeout:  DefaultProviderTimeout,
		signOutTimeout:   DefaultSignOutTimeout,
		persistTimeout:   DefaultPersistTimeout,
		hydration:        newHydration(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrDefault(s.logger).With("component", "session")

	if s.cache == nil {
		if r, ok := deps.Resolver.(*resolver.Resolver); ok {
			s.cache = r.Cache()
		} else {
			s.cache = identity.New()
		}
	}
	if r, ok := deps.Resolver.(*resolver.Resolver); ok {
		r.SetHolder(s)
	}

	s.state.Store(&domain.State{Status: domain.StatusLoading})
	s.guard = &Guard{store: s}
	return s, nil
}

// ============================================================================
// Read surface
// ============================================================================

// State returns the current published state.
func (s *Store) State() domain.State {
	st := *s.state.Load()
	st.Snapshot = st.Snapshot.Clone()
	return st
}

// Snapshot returns a copy of the current snapshot, or nil.
func (s *Store) Snapshot() *domain.Snapshot {
	return s.state.Load().Snapshot.Clone()
}

// Status returns the current status.
func (s *Store) Status() domain.Status {
	return s.state.Load().Status
}

// Hydrated reports whether the persisted record load has completed.
func (s *Store) Hydrated() bool {
	return s.state.Load().Hydrated
}

// Onboarded reports the persisted onboarding flag.
func (s *Store) Onboarded() bool {
	return s.state.Load().Onboarded
}

// Guard returns the isolation guard.
func (s *Store) Guard() *Guard {
	return s.guard
}

// Cache returns the identity cache.
func (s *Store) Cache() *identity.Cache {
	return s.cache
}

// Subscribe registers fn to be called after every committed transition.
// Listeners run synchronously, in registration order, and receive the
// latest state. They must not call mutating Store methods.
func (s *Store) Subscribe(fn func(domain.State)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// ============================================================================
// Mutations
// ============================================================================

// Epoch returns the identity generation. It changes on every clear.
func (s *Store) Epoch() uint64 {
	return s.generation()
}

// ApplyResolution stores a row resolved during epoch as the snapshot and
// remembers it in the identity cache. Rows resolved before the last clear,
// rows for another identity than the held snapshot, and rows that arrive
// while the store is unauthenticated are refused.
func (s *Store) ApplyResolution(ctx context.Context, epoch uint64, row *domain.UserRow) bool {
	if row == nil || !row.InternalID.Valid() {
		return false
	}

	s.mu.Lock()
	cur := s.current()
	if s.gen != epoch || cur.Status == domain.StatusUnauthenticated {
		s.mu.Unlock()
		return false
	}
	if held := cur.Snapshot; held != nil && held.OpaqueID != row.OpaqueID && !held.SameEmail(row.Email) {
		s.mu.Unlock()
		s.logger.Warn("ignoring resolution for a different identity",
			"held_opaque_id", held.OpaqueID.String(), "row_opaque_id", row.OpaqueID.String())
		return false
	}
	s.cache.Remember(row)
	cur.Snapshot = domain.SnapshotFromRow(row)
	s.publish(cur)
	s.persistLocked(ctx, cur)
	s.mu.Unlock()

	s.notify()
	return true
}

// SetOnboarded records the device-level onboarding flag.
func (s *Store) SetOnboarded(ctx context.Context, done bool) {
	s.mu.Lock()
	cur := s.current()
	cur.Onboarded = done
	s.publish(cur)
	s.persistLocked(ctx, cur)
	s.mu.Unlock()

	s.notify()
}

// InternalID returns the internal id of the current user for data access.
// It fails with ErrUnresolvedIdentity rather than returning zero.
func (s *Store) InternalID(ctx context.Context) (domain.InternalID, error) {
	st := s.state.Load()
	if st.Status == domain.StatusUnauthenticated || st.Snapshot == nil {
		return 0, domain.ErrUnresolvedIdentity.WithDetails("no current session")
	}
	if st.Snapshot.InternalID.Valid() {
		return st.Snapshot.InternalID, nil
	}
	if !st.Snapshot.OpaqueID.Valid() {
		return 0, domain.ErrUnresolvedIdentity.WithDetails("snapshot has no opaque id")
	}

	res, err := s.resolver.ResolveSession(ctx, &domain.LiveSession{
		OpaqueID: st.Snapshot.OpaqueID,
		Email:    st.Snapshot.Email,
	})
	if err != nil {
		return 0, err
	}
	return res.InternalID, nil
}

// ============================================================================
// Internals (callers hold s.mu unless noted)
// ============================================================================

// current returns a mutable copy of the published state.
func (s *Store) current() domain.State {
	return *s.state.Load()
}

// publish swaps in next as the visible state.
func (s *Store) publish(next domain.State) {
	s.state.Store(&next)
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// persistLocked writes the record for st. Failures are logged; the
// in-memory state stays authoritative for this process.
func (s *Store) persistLocked(ctx context.Context, st domain.State) {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	rec := domain.NewRecord(st.Snapshot, domain.Preferences{Onboarded: st.Onboarded})
	if err := s.persister.Save(ctx, rec); err != nil {
		logger.Ctx(ctx, s.logger).Error("persist session record failed", "error", err)
	}
}

// notify delivers the latest state to every listener. Must not be called
// with s.mu held.
func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.subMu.Lock()
	ls := make([]listener, len(s.listeners))
	copy(ls, s.listeners)
	s.subMu.Unlock()

	st := s.State()
	for _, l := range ls {
		l.fn(st)
	}
}
