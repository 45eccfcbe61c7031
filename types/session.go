package types

import "time"

// Session is a server-side login session. The Token is the opaque value
// handed to the browser as a cookie; everything else stays server-side.
type Session struct {
	// Token is the random session identifier, base64-encoded.
	Token string `json:"-" db:"token"`

	// UserID is the user this session authenticates.
	UserID int `json:"userId" db:"user_id"`

	// ExpiresAt is when the session stops being honored.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	// CreatedAt is when the session was minted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the session is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
