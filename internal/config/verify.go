package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yndnr/idbridge/internal/directory"
	"github.com/yndnr/idbridge/internal/storage"
	"github.com/yndnr/idbridge/pkg/crypto/adaptive"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their koanf key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return describe(err)
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	return verifyDirectory(&cfg.Directory)
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Engine {
	case storage.EngineBadger:
		if cfg.Dir == "" {
			return errors.New("storage.dir is required for the badger engine")
		}
	case storage.EngineSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite engine")
		}
	case storage.EngineRedis:
		if cfg.RedisAddr == "" {
			return errors.New("storage.redis_addr is required for the redis engine")
		}
	}
	if cfg.EncryptionKey != "" {
		if _, err := adaptive.ParseKey(cfg.EncryptionKey); err != nil {
			return fmt.Errorf("storage.encryption_key: %w", err)
		}
	}
	return nil
}

func verifyDirectory(cfg *DirectorySection) error {
	if cfg.Driver != directory.DriverNone && cfg.DSN == "" {
		return fmt.Errorf("directory.dsn is required for the %s driver", cfg.Driver)
	}
	return nil
}

// describe turns validator errors into "section.key: rule" messages.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Namespace is "Config.section.key".
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, rule))
	}
	return errors.New("invalid config: " + strings.Join(msgs, "; "))
}
