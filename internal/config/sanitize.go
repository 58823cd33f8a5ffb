package config

import (
	"net/url"
	"strings"
)

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg
	sanitized.Storage.UserScopedKeys = append([]string(nil), cfg.Storage.UserScopedKeys...)

	if sanitized.Auth.APIKey != "" {
		sanitized.Auth.APIKey = maskSecret(sanitized.Auth.APIKey)
	}
	if sanitized.Storage.EncryptionKey != "" {
		sanitized.Storage.EncryptionKey = maskSecret(sanitized.Storage.EncryptionKey)
	}
	if sanitized.Storage.RedisPassword != "" {
		sanitized.Storage.RedisPassword = maskSecret(sanitized.Storage.RedisPassword)
	}
	sanitized.Directory.DSN = maskDSN(sanitized.Directory.DSN)

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// maskDSN hides the password of a URL-style DSN. Other DSNs (file paths,
// key=value strings) are masked only when they mention a password.
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
			return u.String()
		}
		return dsn
	}
	if strings.Contains(strings.ToLower(dsn), "password=") {
		return maskSecret(dsn)
	}
	return dsn
}
