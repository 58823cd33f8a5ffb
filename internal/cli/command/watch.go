package command

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/idbridge/internal/config"
	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/infra/confloader"
	"github.com/yndnr/idbridge/internal/infra/shutdown"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
)

// DefaultShutdownTimeout bounds the shutdown hooks of watch mode.
const DefaultShutdownTimeout = 10 * time.Second

// WatchCommand keeps the session store alive: it bootstraps on start,
// on SIGHUP, on config file changes and on the configured interval, and
// serves metrics.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Run continuously, re-bootstrapping on SIGHUP and on an interval",
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	cfg, flags, err := loadConfig(c)
	if err != nil {
		return err
	}
	rt, err := NewRuntime(c.Context, cfg, c.App.ErrWriter)
	if err != nil {
		return err
	}
	w := &watcher{
		rt:      rt,
		flags:   flags,
		log:     rt.Logger.With("component", "watch"),
		changes: make(chan struct{}, 1),
	}
	return w.run(c.Context)
}

type watcher struct {
	rt    *Runtime
	flags *GlobalFlags
	log   *slog.Logger

	// changes is signalled after an accepted config reload.
	changes chan struct{}

	// ready receives the metrics listener address once serving. Tests only.
	ready chan<- string
}

func (w *watcher) run(ctx context.Context) error {
	rt := w.rt
	cfg := rt.Config
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Setup graceful shutdown
	sh := shutdown.NewHandler(DefaultShutdownTimeout)
	sh.OnShutdown(func(context.Context) error {
		w.log.Info("closing storage")
		return rt.Close()
	})

	// 1. Log state transitions
	unsubscribe := rt.Store.Subscribe(func(st domain.State) {
		w.log.Info("session state changed",
			"status", st.Status.String(),
			"hydrated", st.Hydrated,
			"has_snapshot", st.Snapshot != nil)
	})
	sh.OnShutdown(func(context.Context) error {
		unsubscribe()
		return nil
	})

	// 2. Metrics and state endpoint
	if cfg.Metrics.Addr != "" {
		srv, err := w.serve(cfg.Metrics.Addr)
		if err != nil {
			return errors.Join(err, rt.Close())
		}
		sh.OnShutdown(func(ctx context.Context) error {
			w.log.Info("shutting down metrics server")
			return srv.Shutdown(ctx)
		})
	}

	// 3. Config file reload
	if w.flags.ConfigFile != "" {
		cw, err := confloader.NewWatcher(w.flags.ConfigFile, confloader.WithWatcherLogger(w.log))
		if err != nil {
			w.log.Warn("config watcher disabled", "error", err)
		} else {
			cw.OnChange(w.reloadConfig)
			go func() {
				if err := cw.Run(ctx); err != nil {
					w.log.Warn("config watcher stopped", "error", err)
				}
			}()
		}
	}

	// 4. Bootstrap loop, stopped before anything else is torn down
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		w.loop(ctx, shutdown.Reloads(ctx), cfg.Session.BootstrapInterval)
	}()
	sh.OnShutdown(func(context.Context) error {
		cancel()
		<-loopDone
		return nil
	})

	w.log.Info("watching session, press Ctrl+C to stop")
	if err := sh.Wait(ctx); err != nil {
		w.log.Error("shutdown error", "error", err)
		return err
	}
	w.log.Info("stopped")
	return nil
}

func (w *watcher) loop(ctx context.Context, reloads <-chan struct{}, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	w.bootstrap(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			return
		case <-reloads:
			w.bootstrap(ctx, "sighup")
		case <-w.changes:
			w.bootstrap(ctx, "config")
		case <-tick:
			w.bootstrap(ctx, "interval")
		}
	}
}

func (w *watcher) bootstrap(ctx context.Context, reason string) {
	st, err := w.rt.Store.Bootstrap(ctx)
	if err != nil {
		w.log.Warn("bootstrap failed", "reason", reason, "error", err)
		return
	}
	w.log.Debug("bootstrap done", "reason", reason, "status", st.Status.String())
}

// reloadConfig applies the settings that can change at runtime and asks
// the loop for a fresh bootstrap. Everything else needs a restart.
func (w *watcher) reloadConfig(path string) {
	cfg, err := config.Load(path, w.flags.Overrides)
	if err != nil {
		w.log.Warn("config reload rejected", "error", err)
		return
	}
	if w.flags.Verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Level != logger.GetLevel() {
		logger.SetLevel(cfg.Log.Level)
		w.log.Info("log level changed", "level", cfg.Log.Level)
	}

	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *watcher) serve(addr string) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", w.rt.Metrics.Handler())
	mux.HandleFunc("/state", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(w.rt.Store.State())
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		w.log.Info("metrics server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("metrics server error", "error", err)
		}
	}()
	if w.ready != nil {
		w.ready <- ln.Addr().String()
	}
	return srv, nil
}
