package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yndnr/idbridge/internal/core/domain"
	"github.com/yndnr/idbridge/internal/core/resolver"
)

// DefaultSyncPath is the profile sync endpoint.
const DefaultSyncPath = "/rpc/sync_profile"

// ProfileSync upserts the application user row for a session through the
// backend's sync procedure. It implements resolver.ProfileSyncer.
type ProfileSync struct {
	client *HTTPClient
	tokens TokenSource
	path   string
}

// NewProfileSync creates a ProfileSync. tokens may be nil for endpoints
// that authenticate with the API key alone.
func NewProfileSync(client *HTTPClient, tokens TokenSource, path string) *ProfileSync {
	if path == "" {
		path = DefaultSyncPath
	}
	return &ProfileSync{client: client, tokens: tokens, path: path}
}

// profileRow is the row shape returned by the sync procedure.
type profileRow struct {
	ID             flexID `json:"id"`
	AuthID         string `json:"auth_id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url"`
	Bio            string `json:"bio"`
	Verified       bool   `json:"verified"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
	PostsCount     int64  `json:"posts_count"`
}

func (p profileRow) userRow() *domain.UserRow {
	return &domain.UserRow{
		InternalID:  domain.InternalID(p.ID),
		OpaqueID:    domain.OpaqueID(strings.TrimSpace(p.AuthID)),
		Email:       p.Email,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		Verified:    p.Verified,
		Counts: domain.Counts{
			Followers: p.FollowersCount,
			Following: p.FollowingCount,
			Posts:     p.PostsCount,
		},
	}
}

// flexID accepts an integer id encoded as a JSON number or string.
type flexID int64

func (id *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("id %q is not an integer: %w", s, err)
	}
	*id = flexID(n)
	return nil
}

// Sync calls the sync procedure. The procedure may answer with a row or a
// single-element array of rows.
func (p *ProfileSync) Sync(ctx context.Context, req resolver.SyncRequest) (*domain.UserRow, error) {
	var token string
	if p.tokens != nil {
		t, err := p.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read access token: %w", err)
		}
		token = t
	}

	resp, err := p.client.Post(ctx, p.path, token, req)
	if err != nil {
		return nil, fmt.Errorf("sync profile: %w", err)
	}

	var raw json.RawMessage
	if err := ParseResponse(resp, &raw); err != nil {
		return nil, fmt.Errorf("sync profile: %w", err)
	}

	row, err := decodeProfile(raw)
	if err != nil {
		return nil, err
	}
	return row.userRow(), nil
}

func decodeProfile(raw json.RawMessage) (*profileRow, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, domain.ErrUserNotFound.WithDetails("sync returned no row")
	}

	if raw[0] == '[' {
		var rows []profileRow
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode profile rows: %w", err)
		}
		if len(rows) == 0 {
			return nil, domain.ErrUserNotFound.WithDetails("sync returned no row")
		}
		return &rows[0], nil
	}

	var row profileRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode profile row: %w", err)
	}
	return &row, nil
}
