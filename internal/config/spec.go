package config

import "time"

// Config is the root configuration of the idbridge client.
type Config struct {
	Auth      AuthSection      `koanf:"auth" json:"auth"`
	Profile   ProfileSection   `koanf:"profile" json:"profile"`
	Directory DirectorySection `koanf:"directory" json:"directory"`
	Storage   StorageSection   `koanf:"storage" json:"storage"`
	Session   SessionSection   `koanf:"session" json:"session"`
	Log       LogSection       `koanf:"log" json:"log"`
	Metrics   MetricsSection   `koanf:"metrics" json:"metrics"`
}

// AuthSection configures the auth provider.
type AuthSection struct {
	BaseURL string `koanf:"base_url" json:"base_url" validate:"required,url"`
	APIKey  string `koanf:"api_key" json:"api_key"`

	// TokenKey is the storage key holding the access token.
	TokenKey string `koanf:"token_key" json:"token_key"`

	Timeout        time.Duration `koanf:"timeout" json:"timeout" validate:"gte=0"`
	RateLimitRPS   float64       `koanf:"rate_limit_rps" json:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int           `koanf:"rate_limit_burst" json:"rate_limit_burst" validate:"gte=0"`
}

// ProfileSection configures the profile sync endpoint.
type ProfileSection struct {
	// SyncURL is the base URL of the sync endpoint. Empty uses auth.base_url.
	SyncURL  string        `koanf:"sync_url" json:"sync_url" validate:"omitempty,url"`
	SyncPath string        `koanf:"sync_path" json:"sync_path" validate:"required,startswith=/"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout" validate:"gte=0"`
}

// DirectorySection configures the direct-read fallback.
type DirectorySection struct {
	Driver  string        `koanf:"driver" json:"driver" validate:"oneof=none postgres sqlite"`
	DSN     string        `koanf:"dsn" json:"dsn"`
	Schema  string        `koanf:"schema" json:"schema"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" validate:"gte=0"`
}

// StorageSection configures where the session record lives.
type StorageSection struct {
	Engine        string `koanf:"engine" json:"engine" validate:"oneof=memory badger sqlite redis"`
	Dir           string `koanf:"dir" json:"dir"`
	SQLitePath    string `koanf:"sqlite_path" json:"sqlite_path"`
	RedisAddr     string `koanf:"redis_addr" json:"redis_addr"`
	RedisPassword string `koanf:"redis_password" json:"redis_password"`
	RedisDB       int    `koanf:"redis_db" json:"redis_db" validate:"gte=0"`
	RedisPrefix   string `koanf:"redis_prefix" json:"redis_prefix"`

	// Namespace prefixes every persisted key.
	Namespace string `koanf:"namespace" json:"namespace" validate:"required"`

	// EncryptionKey seals the session record at rest when set.
	EncryptionKey string `koanf:"encryption_key" json:"encryption_key"`

	// UserScopedKeys are extra keys removed on sign-out and mismatch.
	UserScopedKeys []string `koanf:"user_scoped_keys" json:"user_scoped_keys"`

	GCInterval time.Duration `koanf:"gc_interval" json:"gc_interval" validate:"gte=0"`
}

// SessionSection configures the session store.
type SessionSection struct {
	HydrationTimeout time.Duration `koanf:"hydration_timeout" json:"hydration_timeout" validate:"gt=0"`
	ProviderTimeout  time.Duration `koanf:"provider_timeout" json:"provider_timeout" validate:"gt=0"`
	SignOutTimeout   time.Duration `koanf:"signout_timeout" json:"signout_timeout" validate:"gt=0"`
	PersistTimeout   time.Duration `koanf:"persist_timeout" json:"persist_timeout" validate:"gt=0"`
	SyncTimeout      time.Duration `koanf:"sync_timeout" json:"sync_timeout" validate:"gt=0"`

	// BootstrapInterval re-runs bootstrap periodically in watch mode.
	// Zero disables it.
	BootstrapInterval time.Duration `koanf:"bootstrap_interval" json:"bootstrap_interval" validate:"gte=0"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" json:"format" validate:"oneof=json text"`
}

// MetricsSection configures the metrics endpoint of watch mode.
type MetricsSection struct {
	Addr string `koanf:"addr" json:"addr" validate:"omitempty,hostname_port"`
}
