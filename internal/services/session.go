package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/saifulabidin/fake-pinterest/internal/store"
	"github.com/saifulabidin/fake-pinterest/types"
)

const sessionTokenBytes = 32

// ErrUserNotFound is returned when a session resolves to a user id that no
// longer exists. The stale session is destroyed before this is returned.
var ErrUserNotFound = errors.New("user not found")

// SessionRepository defines persistence operations for sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) (types.Session, error)
	GetByToken(ctx context.Context, token string) (types.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionService mints, resolves, and destroys server-side login sessions.
type SessionService struct {
	sessions SessionRepository
	users    UserRepository
	ttl      time.Duration
}

func NewSessionService(sessions SessionRepository, users UserRepository, ttl time.Duration) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
	}
}

// Mint creates a session for the user and returns it with a fresh random
// token.
func (s *SessionService) Mint(ctx context.Context, userID int) (types.Session, error) {
	tokenBytes := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return types.Session{}, fmt.Errorf("generating session token: %w", err)
	}

	return s.sessions.Create(ctx, types.Session{
		Token:     base64.URLEncoding.EncodeToString(tokenBytes),
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.ttl),
	})
}

// Resolve returns the user behind a session token. Unknown and expired
// tokens return store.ErrNotFound; a session whose user row is gone is
// destroyed and reported as ErrUserNotFound.
func (s *SessionService) Resolve(ctx context.Context, token string) (types.User, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return types.User{}, err
	}

	if session.Expired(time.Now()) {
		_ = s.sessions.Delete(ctx, token)
		return types.User{}, store.ErrNotFound
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.sessions.Delete(ctx, token)
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// Destroy removes a session. Destroying an unknown token is not an error.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Sweep drops expired sessions.
func (s *SessionService) Sweep(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}
