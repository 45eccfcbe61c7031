package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/xid"
	"github.com/saifulabidin/fake-pinterest/internal/auth"
	"github.com/saifulabidin/fake-pinterest/internal/store"
	"github.com/saifulabidin/fake-pinterest/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByFirebaseUID(ctx context.Context, uid string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// FindOrCreate resolves a verified external identity to a local user,
// creating the account on first sign-in. When the identity provider reports
// changed profile details for an existing account they are merged in.
// A concurrent first sign-in for the same identity loses the insert race
// cleanly: the unique violation is treated as "someone else just created
// it" and the winner's row is fetched.
func (s *UserService) FindOrCreate(ctx context.Context, identity auth.Identity) (types.User, error) {
	user, err := s.repo.GetByFirebaseUID(ctx, identity.UID)
	if err == nil {
		return s.mergeProfile(ctx, user, identity)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	created, err := s.repo.Create(ctx, types.User{
		FirebaseUID: identity.UID,
		GithubID:    identity.ProviderID,
		Email:       identity.Email,
		Username:    deriveUsername(identity),
		DisplayName: identity.DisplayName,
		PhotoURL:    identity.PhotoURL,
		Role:        types.RoleUser,
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return types.User{}, err
	}
	return s.repo.GetByFirebaseUID(ctx, identity.UID)
}

func (s *UserService) mergeProfile(ctx context.Context, user types.User, identity auth.Identity) (types.User, error) {
	changed := false
	if identity.Email != "" && identity.Email != user.Email {
		user.Email = identity.Email
		changed = true
	}
	if identity.DisplayName != "" && identity.DisplayName != user.DisplayName {
		user.DisplayName = identity.DisplayName
		changed = true
	}
	if identity.PhotoURL != "" && identity.PhotoURL != user.PhotoURL {
		user.PhotoURL = identity.PhotoURL
		changed = true
	}
	if !changed {
		return user, nil
	}
	return s.repo.UpdateProfile(ctx, user)
}

// deriveUsername picks a handle for a first sign-in: the provider's display
// name, else the local part of the email, else a generated placeholder.
// Collisions with existing usernames are tolerated.
func deriveUsername(identity auth.Identity) string {
	if name := slugify(identity.DisplayName); name != "" {
		return name
	}
	if at := strings.Index(identity.Email, "@"); at > 0 {
		if name := slugify(identity.Email[:at]); name != "" {
			return name
		}
	}
	return "user_" + xid.New().String()
}

// slugify lowercases and keeps only characters safe for a profile URL.
func slugify(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
