package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/saifulabidin/fake-pinterest/types"
)

// SessionRepository handles persistence for login sessions.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	session.CreatedAt = time.Now()

	const query = `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		session.Token,
		session.UserID,
		session.ExpiresAt,
		session.CreatedAt,
	); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (types.Session, error) {
	const query = `
		SELECT token, user_id, expires_at, created_at
		FROM sessions
		WHERE token = $1`
	var session types.Session
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Session{}, ErrNotFound
		}
		return types.Session{}, err
	}
	return session, nil
}

// Delete removes a session. Deleting a session that is already gone is not
// an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	const query = `DELETE FROM sessions WHERE token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// DeleteExpired removes sessions past their expiry and returns how many
// were dropped.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at < now()`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
