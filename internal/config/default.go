package config

import (
	"time"

	"github.com/yndnr/idbridge/internal/core/session"
	"github.com/yndnr/idbridge/internal/directory"
	"github.com/yndnr/idbridge/internal/remote"
	"github.com/yndnr/idbridge/internal/storage"
	"github.com/yndnr/idbridge/internal/storage/persist"
)

// Default configuration values.
const (
	DefaultBaseURL     = "http://127.0.0.1:54321"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultSyncTimeout = 5 * time.Second
)

// Default returns the default configuration.
func Default() *Config {
	kv := storage.DefaultConfig()
	return &Config{
		Auth: AuthSection{
			BaseURL:  DefaultBaseURL,
			TokenKey: remote.DefaultTokenKey,
			Timeout:  remote.DefaultTimeout,
		},
		Profile: ProfileSection{
			SyncPath: remote.DefaultSyncPath,
			Timeout:  remote.DefaultTimeout,
		},
		Directory: DirectorySection{
			Driver:  directory.DriverNone,
			Schema:  directory.DefaultSchema,
			Timeout: directory.DefaultPingTimeout,
		},
		Storage: StorageSection{
			Engine:      kv.Engine,
			Dir:         kv.Dir,
			SQLitePath:  kv.SQLitePath,
			RedisAddr:   kv.RedisAddr,
			RedisPrefix: kv.RedisPrefix,
			Namespace:   persist.DefaultNamespace,
			GCInterval:  kv.Badger.GCInterval,
		},
		Session: SessionSection{
			HydrationTimeout: session.DefaultHydrationTimeout,
			ProviderTimeout:  session.DefaultProviderTimeout,
			SignOutTimeout:   session.DefaultSignOutTimeout,
			PersistTimeout:   session.DefaultPersistTimeout,
			SyncTimeout:      DefaultSyncTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// KV returns the storage backend configuration.
func (s StorageSection) KV() storage.Config {
	kv := storage.DefaultConfig()
	kv.Engine = s.Engine
	kv.Dir = s.Dir
	kv.SQLitePath = s.SQLitePath
	kv.RedisAddr = s.RedisAddr
	kv.RedisPassword = s.RedisPassword
	kv.RedisDB = s.RedisDB
	kv.RedisPrefix = s.RedisPrefix
	if s.GCInterval > 0 {
		kv.Badger.GCInterval = s.GCInterval
	}
	return kv
}

// Reader returns the direct-read configuration.
func (d DirectorySection) Reader() directory.Config {
	return directory.Config{
		Driver:  d.Driver,
		DSN:     d.DSN,
		Schema:  d.Schema,
		Timeout: d.Timeout,
	}
}

// SyncBaseURL returns the base URL of the profile sync endpoint.
func (c *Config) SyncBaseURL() string {
	if c.Profile.SyncURL != "" {
		return c.Profile.SyncURL
	}
	return c.Auth.BaseURL
}
