package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/core/identity"
	"github.com/yndnr/idbridge/internal/core/resolver"
	"github.com/yndnr/idbridge/internal/storage"
	"github.com/yndnr/idbridge/internal/storage/memory"
	"github.com/yndnr/idbridge/internal/storage/persist"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
	"github.com/yndnr/idbridge/internal/telemetry/metric"
)

var errNetwork = errors.New("dial tcp: connection refused")

// fakeProvider answers GetSession with a fixed session or error.
type fakeProvider struct {
	mu         sync.Mutex
	session    *domain.LiveSession
	err        error
	delay      time.Duration
	gate       chan struct{}
	calls      atomic.Int32
	signOutErr error
	signOutDly time.Duration
	signOuts   atomic.Int32
}

func (p *fakeProvider) GetSession(ctx context.Context) (*domain.LiveSession, error) {
	p.calls.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, p.err
	}
	live := *p.session
	return &live, p.err
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.signOuts.Add(1)
	if p.signOutDly > 0 {
		time.Sleep(p.signOutDly)
	}
	return p.signOutErr
}

// fakeSyncer returns a row per opaque id, or err.
type fakeSyncer struct {
	mu     sync.Mutex
	rows   map[domain.OpaqueID]*domain.UserRow
	err    error
	calls  int
	onCall func(req resolver.SyncRequest)
}

func (f *fakeSyncer) Sync(ctx context.Context, req resolver.SyncRequest) (*domain.UserRow, error) {
	f.mu.Lock()
	f.calls++
	onCall := f.onCall
	f.mu.Unlock()
	if onCall != nil {
		onCall(req)
	}
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[req.OpaqueID]
	if !ok {
		return nil, errors.New("no such profile")
	}
	return row.Clone(), nil
}

func (f *fakeSyncer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// slowKV blocks the first GetItem until release is closed.
type slowKV struct {
	*memory.Store
	release chan struct{}
	gets    atomic.Int32
}

func (k *slowKV) GetItem(ctx context.Context, key string) (string, bool, error) {
	if k.gets.Add(1) == 1 {
		<-k.release
	}
	return k.Store.GetItem(ctx, key)
}

type harness struct {
	kv        *memory.Store
	persister *persist.Persister
	provider  *fakeProvider
	syncer    *fakeSyncer
	resolver  *resolver.Resolver
	metrics   *metric.Registry
	store     *Store
}

var snapA = &domain.Snapshot{
	InternalID: 42,
	OpaqueID:   "abc",
	Email:      "a@x.com",
	Username:   "alice",
	Resolved:   true,
}

func rowFor(id domain.InternalID, opaque domain.OpaqueID, email string) *domain.UserRow {
	return &domain.UserRow{InternalID: id, OpaqueID: opaque, Email: email}
}

func seedRecord(t *testing.T, p *persist.Persister, snap *domain.Snapshot, prefs domain.Preferences) {
	t.Helper()
	if err := p.Save(context.Background(), domain.NewRecord(snap, prefs)); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func newHarness(t *testing.T, kv storage.KV, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		provider: &fakeProvider{},
		syncer:   &fakeSyncer{rows: map[domain.OpaqueID]*domain.UserRow{}},
		metrics:  metric.NewRegistry(),
	}
	if kv == nil {
		h.kv = memory.New()
		kv = h.kv
	}
	t.Cleanup(func() { _ = kv.Close() })

	var err error
	h.persister, err = persist.New(kv, persist.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	h.resolver = resolver.New(identity.New(), h.syncer,
		resolver.WithLogger(logger.Discard()),
		resolver.WithMetrics(h.metrics),
		resolver.WithSyncTimeout(200*time.Millisecond))

	opts = append([]Option{
		WithLogger(logger.Discard()),
		WithMetrics(h.metrics),
		WithHydrationTimeout(200 * time.Millisecond),
		WithProviderTimeout(200 * time.Millisecond),
		WithSignOutTimeout(200 * time.Millisecond),
	}, opts...)
	h.store, err = New(Deps{
		Provider:  h.provider,
		Resolver:  h.resolver,
		Persister: h.persister,
	}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) bootstrap(t *testing.T) domain.State {
	t.Helper()
	st, err := h.store.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	return st
}

// savedRecord reads back what is persisted right now.
func (h *harness) savedRecord(t *testing.T) *domain.Record {
	t.Helper()
	rec, err := h.persister.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return rec
}
