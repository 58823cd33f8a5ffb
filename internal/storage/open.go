package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/idbridge/internal/storage/memory"
)

// Open returns the backend named by cfg.Engine. reg may be nil; when set,
// backends that export engine metrics register them there.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, reg prometheus.Registerer) (KV, error) {
	switch strings.ToLower(cfg.Engine) {
	case EngineMemory:
		return memory.New(), nil
	case EngineBadger, "":
		kv, err := NewBadgerKV(cfg, logger)
		if err != nil {
			return nil, err
		}
		return kv.RegisterMetrics(reg), nil
	case EngineSQLite:
		kv, err := NewSQLiteKV(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case EngineRedis:
		kv, err := DialRedisKV(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}
