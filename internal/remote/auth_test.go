package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/storage/memory"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
)

func signedToken(t *testing.T, exp time.Time, email string) string {
	t.Helper()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "abc",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

type authBackend struct {
	server  *httptest.Server
	userHit atomic.Int32
	logouts atomic.Int32
}

func newAuthBackend(t *testing.T, userStatus int, userBody string, logoutStatus int) *authBackend {
	t.Helper()
	b := &authBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		b.userHit.Add(1)
		if r.Header.Get("Authorization") == "" {
			t.Error("user request without Authorization header")
		}
		w.WriteHeader(userStatus)
		w.Write([]byte(userBody))
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		b.logouts.Add(1)
		w.WriteHeader(logoutStatus)
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *authBackend) provider(tokens TokenSource) *AuthProvider {
	return NewAuthProvider(NewHTTPClient(b.server.URL), tokens, WithAuthLogger(logger.Discard()))
}

const userBody = `{"id":"abc","email":"a@x.com","user_metadata":{"user_name":"alice","full_name":"Alice A","avatar_url":"https://img/a.png"}}`

func TestAuthProvider_GetSession(t *testing.T) {
	b := newAuthBackend(t, http.StatusOK, userBody, http.StatusNoContent)
	token := signedToken(t, time.Now().Add(time.Hour), "a@x.com")

	live, err := b.provider(StaticToken(token)).GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if live == nil {
		t.Fatal("GetSession() = nil, want session")
	}
	if live.OpaqueID != "abc" || live.Email != "a@x.com" {
		t.Errorf("session = %+v", live)
	}
	if live.Username != "alice" || live.DisplayName != "Alice A" || live.AvatarURL != "https://img/a.png" {
		t.Errorf("profile fields = %+v", live)
	}
	if live.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not taken from token")
	}
	if live.AccessToken != token {
		t.Error("AccessToken not carried")
	}
}

func TestAuthProvider_NoToken(t *testing.T) {
	b := newAuthBackend(t, http.StatusOK, userBody, http.StatusNoContent)

	live, err := b.provider(StaticToken("")).GetSession(context.Background())
	if err != nil || live != nil {
		t.Errorf("GetSession() = %+v, %v; want nil, nil", live, err)
	}
	if n := b.userHit.Load(); n != 0 {
		t.Errorf("user endpoint hits = %d, want 0", n)
	}
}

func TestAuthProvider_ExpiredTokenSkipsNetwork(t *testing.T) {
	b := newAuthBackend(t, http.StatusOK, userBody, http.StatusNoContent)
	token := signedToken(t, time.Now().Add(-time.Minute), "a@x.com")

	live, err := b.provider(StaticToken(token)).GetSession(context.Background())
	if err != nil || live != nil {
		t.Errorf("GetSession() = %+v, %v; want nil, nil", live, err)
	}
	if n := b.userHit.Load(); n != 0 {
		t.Errorf("user endpoint hits = %d, want 0", n)
	}
}

func TestAuthProvider_OpaqueTokenAccepted(t *testing.T) {
	b := newAuthBackend(t, http.StatusOK, `{"id":"abc","email":"a@x.com"}`, http.StatusNoContent)

	live, err := b.provider(StaticToken("not-a-jwt")).GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if live == nil || live.OpaqueID != "abc" {
		t.Errorf("session = %+v, want abc", live)
	}
	if !live.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero for opaque token", live.ExpiresAt)
	}
}

func TestAuthProvider_ResponseStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantNil bool
		wantErr error
	}{
		{"unauthorized means no session", http.StatusUnauthorized, `{"msg":"invalid"}`, true, nil},
		{"forbidden means no session", http.StatusForbidden, ``, true, nil},
		{"server error", http.StatusBadGateway, ``, true, domain.ErrProviderError},
		{"missing id", http.StatusOK, `{"email":"a@x.com"}`, true, domain.ErrProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newAuthBackend(t, tt.status, tt.body, http.StatusNoContent)
			live, err := b.provider(StaticToken("opaque")).GetSession(context.Background())
			if tt.wantErr == nil && err != nil {
				t.Errorf("GetSession() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("GetSession() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantNil && live != nil {
				t.Errorf("GetSession() = %+v, want nil", live)
			}
		})
	}
}

func TestAuthProvider_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	p := NewAuthProvider(NewHTTPClient(server.URL), StaticToken("opaque"), WithAuthLogger(logger.Discard()))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.GetSession(ctx)
	if !errors.Is(err, domain.ErrProviderTimeout) {
		t.Errorf("GetSession() error = %v, want ErrProviderTimeout", err)
	}
}

func TestAuthProvider_SignOutClearsToken(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusNoContent, false},
		{"already signed out", http.StatusUnauthorized, false},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := newAuthBackend(t, http.StatusOK, userBody, tt.status)
			tokens := NewKVTokenSource(memory.New(), "")
			if err := tokens.SetToken(ctx, "opaque"); err != nil {
				t.Fatal(err)
			}

			err := b.provider(tokens).SignOut(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("SignOut() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n := b.logouts.Load(); n != 1 {
				t.Errorf("logout hits = %d, want 1", n)
			}
			if tok, _ := tokens.Token(ctx); tok != "" {
				t.Errorf("token = %q after sign-out, want cleared", tok)
			}
		})
	}
}

func TestAuthProvider_SignOutWithoutToken(t *testing.T) {
	b := newAuthBackend(t, http.StatusOK, userBody, http.StatusNoContent)

	if err := b.provider(StaticToken("")).SignOut(context.Background()); err != nil {
		t.Errorf("SignOut() error = %v", err)
	}
	if n := b.logouts.Load(); n != 0 {
		t.Errorf("logout hits = %d, want 0", n)
	}
}

func TestKVTokenSource(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	src := NewKVTokenSource(kv, "")

	if src.Key() != DefaultTokenKey {
		t.Errorf("Key() = %q, want %q", src.Key(), DefaultTokenKey)
	}
	if tok, err := src.Token(ctx); err != nil || tok != "" {
		t.Errorf("Token() = %q, %v; want empty", tok, err)
	}
	_ = src.SetToken(ctx, "t1")
	if tok, _ := src.Token(ctx); tok != "t1" {
		t.Errorf("Token() = %q, want t1", tok)
	}

	_ = kv.Close()
	if _, err := src.Token(ctx); err == nil {
		t.Error("Token() on closed store succeeded")
	}
}
