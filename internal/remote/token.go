package remote

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yndnr/idbridge/internal/storage"
)

// DefaultTokenKey is the KV key holding the provider access token.
const DefaultTokenKey = "idbridge.auth.token"

// TokenSource supplies the current access token. An empty token means the
// device holds no credentials.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenClearer is implemented by token sources that can forget the token
// on sign-out.
type TokenClearer interface {
	ClearToken(ctx context.Context) error
}

// StaticToken is a fixed token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// KVTokenSource reads the token from a KV key.
type KVTokenSource struct {
	kv  storage.KV
	key string
}

// NewKVTokenSource creates a token source over kv. An empty key uses
// DefaultTokenKey.
func NewKVTokenSource(kv storage.KV, key string) *KVTokenSource {
	if key == "" {
		key = DefaultTokenKey
	}
	return &KVTokenSource{kv: kv, key: key}
}

// Key returns the KV key.
func (s *KVTokenSource) Key() string { return s.key }

// Token returns the stored token, or "" when none is stored.
func (s *KVTokenSource) Token(ctx context.Context) (string, error) {
	v, ok, err := s.kv.GetItem(ctx, s.key)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}

// SetToken stores token.
func (s *KVTokenSource) SetToken(ctx context.Context, token string) error {
	return s.kv.SetItem(ctx, s.key, token)
}

// ClearToken removes the stored token.
func (s *KVTokenSource) ClearToken(ctx context.Context) error {
	return s.kv.RemoveItem(ctx, s.key)
}

// tokenClaims are the access token claims read without verification. The
// provider verifies the signature; the client only needs expiry and
// subject hints.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// inspectToken parses a JWT access token without verifying it. ok is false
// for tokens that are not JWTs.
func inspectToken(token string) (claims *tokenClaims, ok bool) {
	claims = &tokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// expired reports whether the token carries an exp claim at or before now.
func (c *tokenClaims) expired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.Time.After(now)
}

func (c *tokenClaims) expiresAt() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
