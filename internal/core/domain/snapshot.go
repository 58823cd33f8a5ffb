package domain

import (
	"strings"
	"time"
)

// Counts holds the denormalized social counters of a user row.
type Counts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
	Posts     int64 `json:"posts"`
}

// UserRow is the canonical application user row as returned by profile
// sync or a direct read.
type UserRow struct {
	InternalID  InternalID `json:"internal_id"`
	OpaqueID    OpaqueID   `json:"opaque_id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url"`
	Bio         string     `json:"bio"`
	Verified    bool       `json:"verified"`
	Counts      Counts     `json:"counts"`
}

// Clone returns a copy of the row.
func (r *UserRow) Clone() *UserRow {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Snapshot is the durable record of the last known resolved identity.
//
// InternalID is zero or positive and OpaqueID is empty or non-empty; the two
// are unrelated and neither encodes the other.
type Snapshot struct {
	InternalID  InternalID `json:"internal_id,omitempty"`
	OpaqueID    OpaqueID   `json:"opaque_id,omitempty"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url"`
	Bio         string     `json:"bio"`
	Verified    bool       `json:"verified"`
	Counts      Counts     `json:"counts"`

	// Resolved is false for a minimal snapshot built straight from the
	// live session when no internal id could be produced.
	Resolved bool `json:"resolved"`

	// UpdatedAt is the last write time (Unix milliseconds).
	UpdatedAt int64 `json:"updated_at"`
}

// SnapshotFromRow builds a resolved snapshot from a user row.
func SnapshotFromRow(row *UserRow) *Snapshot {
	if row == nil {
		return nil
	}
	return &Snapshot{
		InternalID:  row.InternalID,
		OpaqueID:    row.OpaqueID,
		Email:       row.Email,
		Username:    row.Username,
		DisplayName: row.DisplayName,
		AvatarURL:   row.AvatarURL,
		Bio:         row.Bio,
		Verified:    row.Verified,
		Counts:      row.Counts,
		Resolved:    row.InternalID.Valid(),
		UpdatedAt:   time.Now().UnixMilli(),
	}
}

// MinimalSnapshot builds an unresolved snapshot from the live session
// payload. It carries no internal id.
func MinimalSnapshot(live *LiveSession) *Snapshot {
	if live == nil {
		return nil
	}
	username := live.Username
	if username == "" {
		if at := strings.IndexByte(live.Email, '@'); at > 0 {
			username = live.Email[:at]
		}
	}
	return &Snapshot{
		OpaqueID:    live.OpaqueID,
		Email:       live.Email,
		Username:    username,
		DisplayName: live.DisplayName,
		AvatarURL:   live.AvatarURL,
		Resolved:    false,
		UpdatedAt:   time.Now().UnixMilli(),
	}
}

// Row converts the snapshot back to a user row.
func (s *Snapshot) Row() *UserRow {
	if s == nil {
		return nil
	}
	return &UserRow{
		InternalID:  s.InternalID,
		OpaqueID:    s.OpaqueID,
		Email:       s.Email,
		Username:    s.Username,
		DisplayName: s.DisplayName,
		AvatarURL:   s.AvatarURL,
		Bio:         s.Bio,
		Verified:    s.Verified,
		Counts:      s.Counts,
	}
}

// Clone creates a copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// SameEmail reports whether email identifies the same person as the
// snapshot. Email is the one attribute comparable under both id systems.
// An empty email on either side never matches.
func (s *Snapshot) SameEmail(email string) bool {
	if s == nil {
		return false
	}
	held := NormalizeEmail(s.Email)
	return held != "" && held == NormalizeEmail(email)
}

// BelongsTo reports whether the snapshot describes the user of live.
// Emails decide when both sides carry one; otherwise the opaque ids must
// match.
func (s *Snapshot) BelongsTo(live *LiveSession) bool {
	if s == nil || live == nil {
		return false
	}
	if NormalizeEmail(s.Email) != "" && NormalizeEmail(live.Email) != "" {
		return s.SameEmail(live.Email)
	}
	return s.OpaqueID == live.OpaqueID
}

// Validate checks the identifier invariants.
func (s *Snapshot) Validate() error {
	if s.InternalID < 0 {
		return ErrInvalidArgument.WithDetails("snapshot internal_id is negative")
	}
	if s.OpaqueID != "" && !s.OpaqueID.Valid() {
		return ErrInvalidArgument.WithDetails("snapshot opaque_id is blank")
	}
	if s.Resolved && !s.InternalID.Valid() {
		return ErrInvalidArgument.WithDetails("resolved snapshot without internal_id")
	}
	return nil
}
