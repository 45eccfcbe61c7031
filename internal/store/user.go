package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/saifulabidin/fake-pinterest/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, firebase_uid, github_id, email, username, display_name, profile_url, photo_url, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.FirebaseUID,
		&user.GithubID,
		&user.Email,
		&user.Username,
		&user.DisplayName,
		&user.ProfileURL,
		&user.PhotoURL,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByFirebaseUID(ctx context.Context, uid string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE firebase_uid = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, uid))
}

// GetByUsername returns the earliest-created user carrying the username.
// Usernames are not unique; first registration wins for profile lookups.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1
		ORDER BY id
		LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// Create inserts a new user. A unique violation on firebase_uid is reported
// as ErrDuplicate so callers can treat a concurrent first sign-in as
// "someone else just created it" and re-fetch.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = types.RoleUser
	}

	const query = `
		INSERT INTO users (firebase_uid, github_id, email, username, display_name, profile_url, photo_url, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.FirebaseUID,
		user.GithubID,
		user.Email,
		user.Username,
		user.DisplayName,
		user.ProfileURL,
		user.PhotoURL,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, err
	}
	return user, nil
}

// UpdateProfile overwrites the mutable profile fields reported by the
// identity provider. The firebase_uid, username, and role never change here.
func (r *UserRepository) UpdateProfile(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET email = $1,
			display_name = $2,
			profile_url = $3,
			photo_url = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.DisplayName,
		user.ProfileURL,
		user.PhotoURL,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}
