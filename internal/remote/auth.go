package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/telemetry/logger"
)

// Default auth endpoints.
const (
	DefaultUserPath   = "/auth/v1/user"
	DefaultLogoutPath = "/auth/v1/logout"
)

// AuthProvider checks the live session against the auth backend.
type AuthProvider struct {
	client     *HTTPClient
	tokens     TokenSource
	userPath   string
	logoutPath string
	logger     *slog.Logger
	now        func() time.Time
}

// AuthOption configures an AuthProvider.
type AuthOption func(*AuthProvider)

// WithUserPath overrides the user endpoint.
func WithUserPath(p string) AuthOption {
	return func(a *AuthProvider) { a.userPath = p }
}

// WithLogoutPath overrides the logout endpoint.
func WithLogoutPath(p string) AuthOption {
	return func(a *AuthProvider) { a.logoutPath = p }
}

// WithAuthLogger sets the logger.
func WithAuthLogger(l *slog.Logger) AuthOption {
	return func(a *AuthProvider) { a.logger = l }
}

// WithClock sets the time source used for token expiry checks.
func WithClock(now func() time.Time) AuthOption {
	return func(a *AuthProvider) { a.now = now }
}

// NewAuthProvider creates an AuthProvider.
func NewAuthProvider(client *HTTPClient, tokens TokenSource, opts ...AuthOption) *AuthProvider {
	a := &AuthProvider{
		client:     client,
		tokens:     tokens,
		userPath:   DefaultUserPath,
		logoutPath: DefaultLogoutPath,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logger.OrDefault(a.logger).With("component", "auth_provider")
	return a
}

// userResponse is the user payload of the auth backend.
type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Username    string `json:"username"`
		UserName    string `json:"user_name"`
		FullName    string `json:"full_name"`
		DisplayName string `json:"display_name"`
		Name        string `json:"name"`
		AvatarURL   string `json:"avatar_url"`
		Picture     string `json:"picture"`
	} `json:"user_metadata"`
}

// GetSession returns the live session. It returns (nil, nil) when there is
// no token, the token has expired or the backend rejects it.
func (a *AuthProvider) GetSession(ctx context.Context) (*domain.LiveSession, error) {
	// 1. Local credentials
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	// 2. Expired JWTs never reach the network
	claims, isJWT := inspectToken(token)
	if isJWT && claims.expired(a.now()) {
		a.logger.Debug("access token expired", "expires_at", claims.expiresAt())
		return nil, nil
	}

	// 3. Ask the backend
	resp, err := a.client.Get(ctx, a.userPath, token)
	if err != nil {
		return nil, providerErr(ctx, err)
	}
	var user userResponse
	if err := ParseResponse(resp, &user); err != nil {
		if IsUnauthorized(err) {
			a.logger.Debug("access token rejected", "error", err)
			return nil, nil
		}
		return nil, domain.ErrProviderError.WithDetails("get user").WithCause(err)
	}

	// 4. Build the session
	opaqueID, err := domain.NewOpaqueID(user.ID)
	if err != nil {
		return nil, domain.ErrProviderError.WithDetails("user payload has no id").WithCause(err)
	}
	md := user.UserMetadata
	live := &domain.LiveSession{
		OpaqueID:    opaqueID,
		Email:       user.Email,
		AccessToken: token,
		ExpiresAt:   claims.expiresAt(),
		Username:    firstNonEmpty(md.Username, md.UserName),
		DisplayName: firstNonEmpty(md.DisplayName, md.FullName, md.Name),
		AvatarURL:   firstNonEmpty(md.AvatarURL, md.Picture),
	}
	if live.Email == "" && isJWT {
		live.Email = claims.Email
	}
	return live, nil
}

// SignOut ends the remote session and forgets the local token. A token
// the backend already rejects counts as signed out.
func (a *AuthProvider) SignOut(ctx context.Context) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}

	var remoteErr error
	if token != "" {
		remoteErr = a.logout(ctx, token)
	}

	if c, ok := a.tokens.(TokenClearer); ok {
		if err := c.ClearToken(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("clear local token failed", "error", err)
			remoteErr = errors.Join(remoteErr, fmt.Errorf("clear token: %w", err))
		}
	}
	return remoteErr
}

func (a *AuthProvider) logout(ctx context.Context, token string) error {
	resp, err := a.client.Post(ctx, a.logoutPath, token, nil)
	if err != nil {
		return providerErr(ctx, err)
	}
	if err := ParseResponse(resp, nil); err != nil {
		if IsUnauthorized(err) {
			return nil
		}
		return domain.ErrProviderError.WithDetails("logout").WithCause(err)
	}
	return nil
}

func (a *AuthProvider) token(ctx context.Context) (string, error) {
	if a.tokens == nil {
		return "", nil
	}
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return "", domain.ErrProviderError.WithDetails("read access token").WithCause(err)
	}
	return token, nil
}

// providerErr classifies a transport failure.
func providerErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrProviderTimeout.WithCause(err)
	}
	return domain.ErrProviderError.WithCause(err)
}
