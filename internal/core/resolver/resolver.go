package resolver

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/core/identity"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
	"github.com/yndnr/idbridge/internal/telemetry/metric"
)

// Default per-call timeouts.
const (
	DefaultSyncTimeout   = 5 * time.Second
	DefaultDirectTimeout = 5 * time.Second
)

// SnapshotHolder owns the in-memory session snapshot.
type SnapshotHolder interface {
	// Snapshot returns a copy of the held snapshot, or nil.
	Snapshot() *domain.Snapshot

	// Epoch identifies the held identity. It changes whenever the identity
	// is cleared.
	Epoch() uint64

	// ApplyResolution offers a row resolved while epoch was current. The
	// holder records it, together with its identity cache entry, only if
	// the epoch is still current and the row belongs to its identity. It
	// reports whether the row was recorded.
	ApplyResolution(ctx context.Context, epoch uint64, row *domain.UserRow) bool
}

// SyncRequest is the input of a profile sync call.
type SyncRequest struct {
	OpaqueID domain.OpaqueID `json:"opaque_id"`
	Email    string          `json:"email,omitempty"`
}

// ProfileSyncer upserts and returns the canonical application row for a
// session. It must be idempotent: the resolver calls it twice in a row on
// failure.
type ProfileSyncer interface {
	Sync(ctx context.Context, req SyncRequest) (*domain.UserRow, error)
}

// DirectReader reads user rows straight from the application data store.
type DirectReader interface {
	ByOpaqueID(ctx context.Context, id domain.OpaqueID) (*domain.UserRow, error)
	ByEmail(ctx context.Context, email string) (*domain.UserRow, error)
}

// Result is a successful resolution.
type Result struct {
	InternalID domain.InternalID `json:"internal_id"`
	User       *domain.UserRow   `json:"user"`
	// Path names the step that produced the answer (metric.Path*).
	Path string `json:"path"`
}

// Resolver resolves opaque ids to internal ids.
type Resolver struct {
	cache  *identity.Cache
	syncer ProfileSyncer
	direct DirectReader
	holder SnapshotHolder

	logger  *slog.Logger
	metrics *metric.Registry

	syncTimeout   time.Duration
	directTimeout time.Duration

	flight singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDirectReader enables the direct-read fallback.
func WithDirectReader(r DirectReader) Option {
	return func(res *Resolver) { res.direct = r }
}

// WithHolder sets the snapshot holder consulted first and updated last.
func WithHolder(h SnapshotHolder) Option {
	return func(res *Resolver) { res.holder = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(res *Resolver) { res.logger = l }
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(res *Resolver) { res.metrics = m }
}

// WithSyncTimeout bounds each profile sync attempt.
func WithSyncTimeout(d time.Duration) Option {
	return func(res *Resolver) {
		if d > 0 {
			res.syncTimeout = d
		}
	}
}

// WithDirectTimeout bounds each direct read.
func WithDirectTimeout(d time.Duration) Option {
	return func(res *Resolver) {
		if d > 0 {
			res.directTimeout = d
		}
	}
}

// New creates a Resolver. syncer may be nil, in which case resolution goes
// straight from the cache to the direct reader.
func New(cache *identity.Cache, syncer ProfileSyncer, opts ...Option) *Resolver {
	if cache == nil {
		cache = identity.New()
	}
	r := &Resolver{
		cache:         cache,
		syncer:        syncer,
		syncTimeout:   DefaultSyncTimeout,
		directTimeout: DefaultDirectTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.OrDefault(r.logger).With("component", "resolver")
	return r
}

// SetHolder wires the snapshot holder after construction. The session
// store is built after the resolver, so this breaks the construction cycle.
func (r *Resolver) SetHolder(h SnapshotHolder) {
	r.holder = h
}

// Cache returns the identity cache backing the resolver.
func (r *Resolver) Cache() *identity.Cache {
	return r.cache
}

// Resolve resolves opaqueID. The email used for the last-resort direct
// read comes from the held snapshot or the cached row when they belong to
// the same opaque id.
func (r *Resolver) Resolve(ctx context.Context, opaqueID domain.OpaqueID) (*Result, error) {
	return r.resolve(ctx, opaqueID, "")
}

// ResolveSession resolves the live session's opaque id, carrying its email
// as the cross-system hint for sync and direct reads.
func (r *Resolver) ResolveSession(ctx context.Context, live *domain.LiveSession) (*Result, error) {
	if live == nil {
		return nil, domain.ErrMissingArgument.WithDetails("live session is nil")
	}
	return r.resolve(ctx, live.OpaqueID, live.Email)
}

func (r *Resolver) resolve(ctx context.Context, opaqueID domain.OpaqueID, email string) (*Result, error) {
	if !opaqueID.Valid() {
		r.metrics.RecordResolution(metric.PathUnresolved)
		return nil, domain.ErrUnresolvedIdentity.WithCause(
			domain.ErrMissingArgument.WithDetails("opaque id is empty"))
	}
	log := logger.Ctx(ctx, r.logger).With("opaque_id", opaqueID.String())

	// 1. Held snapshot
	var snap *domain.Snapshot
	if r.holder != nil {
		snap = r.holder.Snapshot()
	}
	if snap != nil && snap.OpaqueID == opaqueID && snap.InternalID.Valid() {
		r.metrics.RecordResolution(metric.PathSnapshot)
		log.Debug("resolved from snapshot", "internal_id", snap.InternalID.String())
		return &Result{InternalID: snap.InternalID, User: snap.Row(), Path: metric.PathSnapshot}, nil
	}

	// 2. Identity cache
	if id, ok := r.cache.Get(opaqueID); ok {
		row, _ := r.cache.LastRow()
		if row == nil || row.OpaqueID != opaqueID || row.InternalID != id {
			row = &domain.UserRow{InternalID: id, OpaqueID: opaqueID}
		}
		r.metrics.RecordResolution(metric.PathCache)
		log.Debug("resolved from cache", "internal_id", id.String())
		return &Result{InternalID: id, User: row, Path: metric.PathCache}, nil
	}

	if email == "" {
		email = r.emailHint(opaqueID, snap)
	}

	// 3-5. Network paths, collapsed per opaque id and email. The shared
	// run is detached from any one caller; each step has its own timeout.
	key := opaqueID.String() + "\x00" + domain.NormalizeEmail(email)
	v, err, _ := r.flight.Do(key, func() (any, error) {
		return r.resolveRemote(context.WithoutCancel(ctx), log, opaqueID, email)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*Result)
	return &Result{InternalID: res.InternalID, User: res.User.Clone(), Path: res.Path}, nil
}

func (r *Resolver) resolveRemote(ctx context.Context, log *slog.Logger, opaqueID domain.OpaqueID, email string) (*Result, error) {
	var epoch uint64
	if r.holder != nil {
		epoch = r.holder.Epoch()
	}

	// 3. Profile sync with one immediate retry
	row, path, syncErr := r.syncWithRetry(ctx, log, SyncRequest{OpaqueID: opaqueID, Email: email})

	// 4. Direct read fallback
	var directErr error
	if syncErr != nil {
		row, path, directErr = r.directRead(ctx, log, opaqueID, email)
	}

	// 5. Nothing produced an id
	if row == nil {
		r.metrics.RecordResolution(metric.PathUnresolved)
		cause := directErr
		if cause == nil {
			cause = syncErr
		}
		log.Warn("identity unresolved", "sync_error", errString(syncErr), "direct_error", errString(directErr))
		return nil, domain.ErrUnresolvedIdentity.
			WithDetails("no internal id for opaque id " + opaqueID.String()).
			WithCause(cause)
	}

	row = normalizeRow(row, opaqueID, email)
	if r.holder == nil {
		r.cache.Remember(row)
	} else if !r.holder.ApplyResolution(ctx, epoch, row) {
		log.Debug("resolution not recorded by holder", "internal_id", row.InternalID.String())
	}
	r.metrics.RecordResolution(path)
	log.Info("identity resolved", "internal_id", row.InternalID.String(), "path", path)
	return &Result{InternalID: row.InternalID, User: row.Clone(), Path: path}, nil
}

// syncWithRetry calls the profile sync at most twice with no delay in
// between. Each attempt is bounded by the sync timeout.
func (r *Resolver) syncWithRetry(ctx context.Context, log *slog.Logger, req SyncRequest) (*domain.UserRow, string, error) {
	if r.syncer == nil {
		return nil, "", domain.ErrSyncFailed.WithDetails("profile sync not configured")
	}

	row, err := r.syncOnce(ctx, req)
	if err == nil {
		return row, metric.PathSync, nil
	}
	log.Warn("profile sync failed, retrying", "error", err)

	row, err = r.syncOnce(ctx, req)
	if err == nil {
		return row, metric.PathSyncRetry, nil
	}
	log.Warn("profile sync retry failed", "error", err)
	return nil, "", domain.ErrSyncFailed.WithCause(err)
}

func (r *Resolver) syncOnce(ctx context.Context, req SyncRequest) (*domain.UserRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.syncTimeout)
	defer cancel()

	row, err := r.syncer.Sync(ctx, req)
	if err == nil {
		err = checkRow(row)
	}
	r.metrics.RecordSyncAttempt(err)
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *Resolver) directRead(ctx context.Context, log *slog.Logger, opaqueID domain.OpaqueID, email string) (*domain.UserRow, string, error) {
	if r.direct == nil {
		return nil, "", domain.ErrUserNotFound.WithDetails("direct read not configured")
	}

	row, err := r.readBounded(ctx, func(ctx context.Context) (*domain.UserRow, error) {
		return r.direct.ByOpaqueID(ctx, opaqueID)
	})
	if err == nil {
		return row, metric.PathDirectOpaque, nil
	}
	log.Debug("direct read by opaque id failed", "error", err)

	if domain.NormalizeEmail(email) == "" {
		return nil, "", err
	}
	row, err = r.readBounded(ctx, func(ctx context.Context) (*domain.UserRow, error) {
		return r.direct.ByEmail(ctx, email)
	})
	if err != nil {
		log.Debug("direct read by email failed", "error", err)
		return nil, "", err
	}
	return row, metric.PathDirectEmail, nil
}

func (r *Resolver) readBounded(ctx context.Context, read func(context.Context) (*domain.UserRow, error)) (*domain.UserRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.directTimeout)
	defer cancel()

	row, err := read(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkRow(row); err != nil {
		return nil, err
	}
	return row, nil
}

// emailHint finds an email known to belong to opaqueID.
func (r *Resolver) emailHint(opaqueID domain.OpaqueID, snap *domain.Snapshot) string {
	if snap != nil && snap.OpaqueID == opaqueID {
		return snap.Email
	}
	if row, ok := r.cache.LastRow(); ok && row.OpaqueID == opaqueID {
		return row.Email
	}
	return ""
}

// checkRow rejects rows that cannot serve as a resolution.
func checkRow(row *domain.UserRow) error {
	if row == nil {
		return domain.ErrUserNotFound.WithDetails("empty row")
	}
	if !row.InternalID.Valid() {
		return domain.ErrInvalidArgument.WithDetails("row has no valid internal id")
	}
	return nil
}

// normalizeRow binds the row to the opaque id that was asked for. A row
// found by email may carry a stale or empty provider id.
func normalizeRow(row *domain.UserRow, opaqueID domain.OpaqueID, email string) *domain.UserRow {
	out := row.Clone()
	out.OpaqueID = opaqueID
	if out.Email == "" {
		out.Email = email
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
