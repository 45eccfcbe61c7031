package types

import "time"

// Role values assignable to a user.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account in the system.
// Accounts are created lazily on the first successful sign-in with the
// external identity provider and are never hard-deleted by the core.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// FirebaseUID is the unique identifier issued by the external identity
	// platform. It is immutable once set.
	FirebaseUID string `json:"firebaseUid" db:"firebase_uid"`

	// GithubID is the legacy OAuth identifier, kept for accounts that
	// predate identity-platform sign-in. May be empty.
	GithubID string `json:"githubId,omitempty" db:"github_id"`

	// Email is the user's email address as reported by the identity provider.
	Email string `json:"email" db:"email"`

	// Username is the handle shown in image attributions and profile URLs.
	// Uniqueness is not enforced; collisions are tolerated.
	Username string `json:"username" db:"username"`

	// DisplayName is the user's display or full name.
	DisplayName string `json:"displayName" db:"display_name"`

	// ProfileURL is the user's upstream profile page, if any.
	ProfileURL string `json:"profileUrl,omitempty" db:"profile_url"`

	// PhotoURL is the user's avatar image URL.
	PhotoURL string `json:"photoUrl,omitempty" db:"photo_url"`

	// Role indicates the user's authorization level within the system
	// ("admin" may delete any image, "user" only their own).
	Role string `json:"role" db:"role"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserSummary is the minimal owner projection embedded in image responses.
type UserSummary struct {
	ID          int    `json:"id" db:"id"`
	Username    string `json:"username" db:"username"`
	DisplayName string `json:"displayName" db:"display_name"`
	PhotoURL    string `json:"photoUrl,omitempty" db:"photo_url"`
}

// Summary returns the owner projection for the user.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

// PublicProfile is the anonymous-facing view of a user, served from the
// public profile endpoint together with the number of images they own.
type PublicProfile struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	ProfileURL  string    `json:"profileUrl,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ImageCount  int       `json:"imageCount"`
}

// Public returns the anonymous-facing view of the user.
func (u User) Public(imageCount int) PublicProfile {
	return PublicProfile{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		ProfileURL:  u.ProfileURL,
		CreatedAt:   u.CreatedAt,
		ImageCount:  imageCount,
	}
}
