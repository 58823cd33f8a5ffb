package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerKV implements KV on Badger v3.
type BadgerKV struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64

	metricsLSMSize      prometheus.GaugeFunc
	metricsValueLogSize prometheus.GaugeFunc
	metricsGCRuns       prometheus.Counter

	closed    atomic.Bool
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// BadgerStats contains storage engine statistics.
type BadgerStats struct {
	LSMSize      int64
	ValueLogSize int64
	LastGCTime   int64
	GCRuns       uint64
}

// NewBadgerKV opens a Badger store in cfg.Dir.
func NewBadgerKV(cfg Config, logger *slog.Logger) (*BadgerKV, error) {
	bcfg := cfg.Badger
	if cfg.Dir == "" && !bcfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if bcfg.GCInterval <= 0 {
		bcfg.GCInterval = DefaultBadgerConfig().GCInterval
	}
	if bcfg.GCThreshold <= 0 || bcfg.GCThreshold >= 1 {
		bcfg.GCThreshold = DefaultBadgerConfig().GCThreshold
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if bcfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	if bcfg.CacheSize > 0 {
		opts.BlockCacheSize = bcfg.CacheSize
	}
	if bcfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = bcfg.ValueLogFileSize
	}
	opts.SyncWrites = bcfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	kv := &BadgerKV{
		db:     db,
		cfg:    bcfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go kv.gcLoop()

	logger.Info("badger store opened",
		"dir", cfg.Dir,
		"in_memory", bcfg.InMemory,
		"gc_interval", bcfg.GCInterval)

	return kv, nil
}

// GetItem returns the value stored under key.
func (b *BadgerKV) GetItem(ctx context.Context, key string) (string, bool, error) {
	if b.closed.Load() {
		return "", false, ErrClosed
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger: get %q: %w", key, err)
	}
	return string(value), true, nil
}

// SetItem stores value under key.
func (b *BadgerKV) SetItem(ctx context.Context, key, value string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger: set %q: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key.
func (b *BadgerKV) RemoveItem(ctx context.Context, key string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger: remove %q: %w", key, err)
	}
	return nil
}

// GC runs value log garbage collection until nothing is left to rewrite.
func (b *BadgerKV) GC(ctx context.Context) (int, error) {
	runs := 0
	if b.cfg.InMemory {
		return 0, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return runs, fmt.Errorf("badger: gc: %w", err)
		}
		runs++
	}

	b.lastGCTime.Store(time.Now().UnixMilli())
	b.gcRuns.Add(uint64(runs))
	if b.metricsGCRuns != nil {
		b.metricsGCRuns.Add(float64(runs))
	}
	b.logger.Debug("badger gc completed", "rewrites", runs)
	return runs, nil
}

// Stats returns storage statistics.
func (b *BadgerKV) Stats() BadgerStats {
	lsm, vlog := b.db.Size()
	return BadgerStats{
		LSMSize:      lsm,
		ValueLogSize: vlog,
		LastGCTime:   b.lastGCTime.Load(),
		GCRuns:       b.gcRuns.Load(),
	}
}

// RegisterMetrics registers Badger size gauges. Call once, before use.
func (b *BadgerKV) RegisterMetrics(reg prometheus.Registerer) *BadgerKV {
	if reg == nil {
		return b
	}
	b.metricsLSMSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "idbridge",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	}, func() float64 { return float64(b.Stats().LSMSize) })
	b.metricsValueLogSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "idbridge",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	}, func() float64 { return float64(b.Stats().ValueLogSize) })
	b.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "idbridge",
		Subsystem: "badger",
		Name:      "gc_rewrites_total",
		Help:      "Value log files rewritten by garbage collection",
	})

	reg.MustRegister(b.metricsLSMSize, b.metricsValueLogSize, b.metricsGCRuns)
	return b
}

// Close stops the GC loop and closes the database.
func (b *BadgerKV) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.stopCh)
		<-b.doneCh
		if cerr := b.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close db: %w", cerr)
		}
		b.logger.Info("badger store closed")
	})
	return err
}

// gcLoop runs periodic garbage collection.
func (b *BadgerKV) gcLoop() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()
		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
