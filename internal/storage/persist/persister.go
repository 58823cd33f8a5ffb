package persist

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/storage"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
	"github.com/yndnr/idbridge/pkg/crypto/adaptive"
)

// DefaultNamespace prefixes the record key.
const DefaultNamespace = "idbridge"

const envelopePrefix = "enc:v1:"

// Persister owns the session record key.
type Persister struct {
	kv        storage.KV
	namespace string
	cipher    adaptive.Cipher
	key       []byte
	logger    *slog.Logger

	mu sync.RWMutex
}

// Option configures a Persister.
type Option func(*Persister)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(p *Persister) {
		if ns != "" {
			p.namespace = ns
		}
	}
}

// WithEncryptionKey seals records with the given 32-byte key.
func WithEncryptionKey(key []byte) Option {
	return func(p *Persister) { p.key = key }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Persister) { p.logger = l }
}

// New creates a Persister over kv.
func New(kv storage.KV, opts ...Option) (*Persister, error) {
	if kv == nil {
		return nil, domain.ErrMissingArgument.WithDetails("kv store is nil")
	}
	p := &Persister{kv: kv, namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.OrDefault(p.logger).With("component", "persist")

	if len(p.key) > 0 {
		c, err := adaptive.New(p.key)
		if err != nil {
			return nil, fmt.Errorf("persist: init cipher: %w", err)
		}
		p.cipher = c
	}
	return p, nil
}

// Key returns the record key.
func (p *Persister) Key() string {
	return p.namespace + ".session"
}

// ScopedKey returns a namespaced key for other user-scoped values.
func (p *Persister) ScopedKey(name string) string {
	return p.namespace + "." + name
}

// Encrypted reports whether records are sealed.
func (p *Persister) Encrypted() bool {
	return p.cipher != nil
}

// Load reads the record. A missing or unreadable record returns (nil, nil).
// Only storage failures are returned as errors.
func (p *Persister) Load(ctx context.Context) (*domain.Record, error) {
	p.mu.RLock()
	raw, ok, err := p.kv.GetItem(ctx, p.Key())
	p.mu.RUnlock()
	if err != nil {
		return nil, domain.ErrStorage.WithDetails("load session record").WithCause(err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	rec, err := p.decode(raw)
	if err != nil {
		p.logger.Warn("discarding unreadable session record", "error", err)
		return nil, nil
	}
	return rec, nil
}

// Save writes rec, replacing the previous record.
func (p *Persister) Save(ctx context.Context, rec *domain.Record) error {
	if rec == nil {
		return domain.ErrMissingArgument.WithDetails("record is nil")
	}
	raw, err := p.encode(rec)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.kv.SetItem(ctx, p.Key(), raw); err != nil {
		return domain.ErrStorage.WithDetails("save session record").WithCause(err)
	}
	return nil
}

// Clear removes each of keys (already namespaced). Every key is attempted;
// the errors are joined.
func (p *Persister) Clear(ctx context.Context, keys []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := p.kv.RemoveItem(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", k, err))
		}
	}
	if len(errs) > 0 {
		return domain.ErrStorage.WithDetails("clear user-scoped keys").WithCause(errors.Join(errs...))
	}
	return nil
}

func (p *Persister) encode(rec *domain.Record) (string, error) {
	out := *rec
	out.Version = domain.RecordVersion
	data, err := json.Marshal(&out)
	if err != nil {
		return "", domain.ErrInternal.WithDetails("encode session record").WithCause(err)
	}
	if p.cipher == nil {
		return string(data), nil
	}

	sealed, err := p.cipher.Encrypt(data, []byte(p.Key()))
	if err != nil {
		return "", domain.ErrInternal.WithDetails("seal session record").WithCause(err)
	}
	return envelopePrefix + string(p.cipher.Type()) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

func (p *Persister) decode(raw string) (*domain.Record, error) {
	data := []byte(raw)

	if strings.HasPrefix(raw, envelopePrefix) {
		if len(p.key) == 0 {
			return nil, domain.ErrRecordCorrupt.WithDetails("record is encrypted but no key is configured")
		}
		typ, payload, found := strings.Cut(strings.TrimPrefix(raw, envelopePrefix), ":")
		if !found {
			return nil, domain.ErrRecordCorrupt.WithDetails("malformed envelope")
		}
		c, err := p.cipherFor(adaptive.CipherType(typ))
		if err != nil {
			return nil, domain.ErrRecordCorrupt.WithCause(err)
		}
		sealed, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, domain.ErrRecordCorrupt.WithDetails("envelope is not base64").WithCause(err)
		}
		data, err = c.Decrypt(sealed, []byte(p.Key()))
		if err != nil {
			return nil, domain.ErrRecordCorrupt.WithDetails("decrypt failed").WithCause(err)
		}
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, domain.ErrRecordCorrupt.WithCause(err)
	}
	if rec.Version != domain.RecordVersion {
		return nil, domain.ErrRecordCorrupt.WithDetails(fmt.Sprintf("unsupported record version %d", rec.Version))
	}
	if rec.Snapshot != nil {
		if err := rec.Snapshot.Validate(); err != nil {
			return nil, domain.ErrRecordCorrupt.WithCause(err)
		}
	}
	return &rec, nil
}

// cipherFor returns the cipher that wrote a record of type t. Records
// written on another platform may use the non-preferred algorithm.
func (p *Persister) cipherFor(t adaptive.CipherType) (adaptive.Cipher, error) {
	if p.cipher != nil && p.cipher.Type() == t {
		return p.cipher, nil
	}
	return adaptive.NewWithType(p.key, t)
}
