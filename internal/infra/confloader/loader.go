package confloader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "IDBRIDGE_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets dotted-key values applied last, typically from flags.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) { l.overrides = values }
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source in priority order and unmarshals into target.
// Keys absent from all sources keep the value target already holds.
func (l *Loader) Load(target any) error {
	// 1. File
	if err := l.LoadFile(l.filePath); err != nil {
		return err
	}

	// 2. Environment
	if err := l.LoadEnv(); err != nil {
		return err
	}

	// 3. Overrides
	if len(l.overrides) > 0 {
		if err := l.LoadMap(l.overrides); err != nil {
			return err
		}
	}

	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile loads a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads variables carrying the prefix. The first underscore after
// the prefix separates section from key, so IDBRIDGE_AUTH_BASE_URL sets
// auth.base_url.
func (l *Loader) LoadEnv() error {
	provider := env.Provider(l.envPrefix, ".", func(s string) string {
		return envKey(l.envPrefix, s)
	})
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

func envKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return section
	}
	return section + "." + key
}

// LoadMap loads dotted-key values.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal unmarshals the loaded configuration using koanf tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// String returns a string value by dotted key.
func (l *Loader) String(key string) string {
	return l.k.String(key)
}

// Keys returns all loaded keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

// FilePath returns the configuration file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

var errReadBytes = errors.New("confloader: map provider has no byte form")

// mapProvider is a koanf provider over a dotted-key map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) { return nil, errReadBytes }

func (m mapProvider) Read() (map[string]any, error) {
	return unflatten(m), nil
}

// unflatten turns {"a.b": 1} into {"a": {"b": 1}}.
func unflatten(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		parts := strings.Split(k, ".")
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = v
	}
	return out
}
