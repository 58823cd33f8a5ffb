package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/yndnr/idbridge/internal/config"
	"github.com/yndnr/idbridge/internal/core/identity"
	"github.com/yndnr/idbridge/internal/core/resolver"
	"github.com/yndnr/idbridge/internal/core/session"
	"github.com/yndnr/idbridge/internal/directory"
	"github.com/yndnr/idbridge/internal/remote"
	"github.com/yndnr/idbridge/internal/storage"
	"github.com/yndnr/idbridge/internal/storage/persist"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
	"github.com/yndnr/idbridge/internal/telemetry/metric"
	"github.com/yndnr/idbridge/pkg/crypto/adaptive"
)

// Runtime holds the wired collaborators of one command run.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Metrics   *metric.Registry
	KV        storage.KV
	Tokens    *remote.KVTokenSource
	Persister *persist.Persister
	Provider  *remote.AuthProvider
	Resolver  *resolver.Resolver
	Store     *session.Store

	directory directory.Reader
}

// NewRuntime wires everything cfg describes. Logs go to logOut.
func NewRuntime(ctx context.Context, cfg *config.Config, logOut io.Writer) (*Runtime, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	rt := &Runtime{
		Config:  cfg,
		Logger:  log,
		Metrics: metric.NewRegistry(),
	}

	// 1. Persisted storage
	kv, err := storage.Open(ctx, cfg.Storage.KV(), log, rt.Metrics.Registerer())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	rt.KV = kv

	popts := []persist.Option{
		persist.WithNamespace(cfg.Storage.Namespace),
		persist.WithLogger(log),
	}
	if cfg.Storage.EncryptionKey != "" {
		key, err := adaptive.ParseKey(cfg.Storage.EncryptionKey)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("storage.encryption_key: %w", err)
		}
		popts = append(popts, persist.WithEncryptionKey(key))
	}
	rt.Persister, err = persist.New(rt.KV, popts...)
	if err != nil {
		rt.Close()
		return nil, err
	}

	// 2. Remote collaborators
	rt.Tokens = remote.NewKVTokenSource(rt.KV, cfg.Auth.TokenKey)
	authClient := remote.NewHTTPClient(cfg.Auth.BaseURL,
		remote.WithTimeout(cfg.Auth.Timeout),
		remote.WithRateLimit(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst),
		remote.WithAPIKey(cfg.Auth.APIKey),
	)
	rt.Provider = remote.NewAuthProvider(authClient, rt.Tokens, remote.WithAuthLogger(log))

	syncClient := authClient
	if cfg.SyncBaseURL() != cfg.Auth.BaseURL || cfg.Profile.Timeout != cfg.Auth.Timeout {
		syncClient = remote.NewHTTPClient(cfg.SyncBaseURL(),
			remote.WithTimeout(cfg.Profile.Timeout),
			remote.WithRateLimit(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst),
			remote.WithAPIKey(cfg.Auth.APIKey),
		)
	}
	syncer := remote.NewProfileSync(syncClient, rt.Tokens, cfg.Profile.SyncPath)

	// 3. Direct-read fallback
	dir, err := directory.Open(ctx, cfg.Directory.Reader(), log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open directory: %w", err)
	}
	rt.directory = dir

	ropts := []resolver.Option{
		resolver.WithLogger(log),
		resolver.WithMetrics(rt.Metrics),
		resolver.WithSyncTimeout(cfg.Session.SyncTimeout),
		resolver.WithDirectTimeout(cfg.Directory.Timeout),
	}
	if rt.directory != nil {
		ropts = append(ropts, resolver.WithDirectReader(rt.directory))
	}
	rt.Resolver = resolver.New(identity.New(), syncer, ropts...)

	// 4. Session store
	rt.Store, err = session.New(session.Deps{
		Provider:  rt.Provider,
		Resolver:  rt.Resolver,
		Persister: rt.Persister,
	},
		session.WithLogger(log),
		session.WithMetrics(rt.Metrics),
		session.WithHydrationTimeout(cfg.Session.HydrationTimeout),
		session.WithProviderTimeout(cfg.Session.ProviderTimeout),
		session.WithSignOutTimeout(cfg.Session.SignOutTimeout),
		session.WithPersistTimeout(cfg.Session.PersistTimeout),
		session.WithUserScopedKeys(cfg.Storage.UserScopedKeys...),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Hydrate loads the persisted record into the store and waits for it.
func (rt *Runtime) Hydrate(ctx context.Context) error {
	rt.Store.StartHydration(ctx)
	if !rt.Store.WaitHydrated(ctx, rt.Config.Session.HydrationTimeout) {
		return errors.New("timed out loading the persisted session")
	}
	return nil
}

// Close releases the storage backend and the directory reader.
func (rt *Runtime) Close() error {
	if rt.directory != nil {
		rt.directory.Close()
	}
	if rt.KV != nil {
		return rt.KV.Close()
	}
	return nil
}

// withRuntime loads the config, builds a Runtime and runs fn with it.
func withRuntime(ctx context.Context, cfg *config.Config, logOut io.Writer, fn func(*Runtime) error) error {
	rt, err := NewRuntime(ctx, cfg, logOut)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
