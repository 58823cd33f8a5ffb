package domain

import "time"

// LiveSession is what the auth provider reports for the current session.
type LiveSession struct {
	OpaqueID    OpaqueID
	Email       string
	AccessToken string
	ExpiresAt   time.Time
	Username    string
	DisplayName string
	AvatarURL   string
}

// Status is the transient session status. It is never persisted.
type Status int

const (
	// StatusLoading is the initial status on every boot.
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is the immutable value the session store publishes. Status and
// Snapshot always change together.
type State struct {
	Status    Status    `json:"status"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
	Hydrated  bool      `json:"hydrated"`
	Onboarded bool      `json:"onboarded"`
}

// Authenticated reports whether the status is authenticated.
func (s State) Authenticated() bool { return s.Status == StatusAuthenticated }
