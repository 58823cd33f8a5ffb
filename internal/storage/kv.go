package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrClosed        = errors.New("kv store closed")
	ErrUnknownEngine = errors.New("unknown storage engine")
)

// Engine names accepted by Open.
const (
	EngineMemory = "memory"
	EngineBadger = "badger"
	EngineSQLite = "sqlite"
	EngineRedis  = "redis"
)

// KV is a persisted string key-value store.
//
// Implementations must be safe for concurrent use. A missing key is not an
// error: GetItem reports it with ok == false.
type KV interface {
	// GetItem returns the value stored under key.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Close releases the store.
	Close() error
}

// Config configures the persisted store.
type Config struct {
	// Engine selects the backend: memory, badger, sqlite or redis.
	Engine string

	// Dir is the badger data directory.
	Dir string

	// SQLitePath is the sqlite database file.
	SQLitePath string

	// Redis connection settings.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Badger-specific configuration
	Badger BadgerConfig
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 8MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// SyncWrites enables fsync after each write.
	// Default: true (a session record is tiny and must survive crashes)
	SyncWrites bool

	// InMemory runs badger without touching disk. Tests only.
	InMemory bool
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Engine:      EngineBadger,
		Dir:         "data",
		SQLitePath:  "idbridge.db",
		RedisAddr:   "127.0.0.1:6379",
		RedisPrefix: "idbridge",
		Badger:      DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        8 << 20,
		ValueLogFileSize: 64 << 20,
		SyncWrites:       true,
	}
}
