package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/saifulabidin/fake-pinterest/types"
)

// ImageRepository handles persistence for images.
type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

const imageColumns = `
	i.id, i.url, i.title, i.description, i.tags, i.user_id, i.likes, i.created_at, i.updated_at,
	u.id, u.username, u.display_name, u.photo_url`

func scanImage(row interface{ Scan(...any) error }) (types.Image, error) {
	var image types.Image
	var owner types.UserSummary
	var tags pq.StringArray
	var likes pq.Int64Array
	err := row.Scan(
		&image.ID,
		&image.URL,
		&image.Title,
		&image.Description,
		&tags,
		&image.UserID,
		&likes,
		&image.CreatedAt,
		&image.UpdatedAt,
		&owner.ID,
		&owner.Username,
		&owner.DisplayName,
		&owner.PhotoURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Image{}, ErrNotFound
		}
		return types.Image{}, err
	}

	image.Tags = []string(tags)
	if image.Tags == nil {
		image.Tags = []string{}
	}
	image.Likes = []int64(likes)
	if image.Likes == nil {
		image.Likes = []int64{}
	}
	image.Owner = &owner
	return image, nil
}

// List returns images newest-first. ownerID filters to a single owner when
// non-zero. The second return value is the total match count.
func (r *ImageRepository) List(ctx context.Context, offset, limit, ownerID int) ([]types.Image, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `
		SELECT COUNT(1)
		FROM images i
		WHERE ($1 = 0 OR i.user_id = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + imageColumns + `
		FROM images i
		JOIN users u ON u.id = i.user_id
		WHERE ($1 = 0 OR i.user_id = $1)
		ORDER BY i.created_at DESC, i.id DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, listQuery, ownerID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	images, err := collectImages(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

// Search performs a relevance-ranked full-text match over title, description,
// and tags. The query string must be non-empty.
func (r *ImageRepository) Search(ctx context.Context, query string, offset, limit int) ([]types.Image, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `
		SELECT COUNT(1)
		FROM images i
		WHERE i.search @@ websearch_to_tsquery('english', $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, query).Scan(&total); err != nil {
		return nil, 0, err
	}

	const searchQuery = `
		SELECT ` + imageColumns + `
		FROM images i
		JOIN users u ON u.id = i.user_id
		WHERE i.search @@ websearch_to_tsquery('english', $1)
		ORDER BY ts_rank(i.search, websearch_to_tsquery('english', $1)) DESC, i.created_at DESC
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, searchQuery, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	images, err := collectImages(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

func (r *ImageRepository) Get(ctx context.Context, id int) (types.Image, error) {
	const query = `
		SELECT ` + imageColumns + `
		FROM images i
		JOIN users u ON u.id = i.user_id
		WHERE i.id = $1`
	return scanImage(r.db.QueryRowContext(ctx, query, id))
}

func (r *ImageRepository) Create(ctx context.Context, image types.Image) (types.Image, error) {
	now := time.Now()
	image.CreatedAt = now
	image.UpdatedAt = now
	if image.Tags == nil {
		image.Tags = []string{}
	}
	if image.Likes == nil {
		image.Likes = []int64{}
	}

	const query = `
		INSERT INTO images (url, title, description, tags, user_id, likes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		image.URL,
		image.Title,
		image.Description,
		pq.Array(image.Tags),
		image.UserID,
		pq.Array(image.Likes),
		image.CreatedAt,
		image.UpdatedAt,
	).Scan(&image.ID); err != nil {
		return types.Image{}, err
	}
	return image, nil
}

func (r *ImageRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM images WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByUser returns how many images a user owns.
func (r *ImageRepository) CountByUser(ctx context.Context, userID int) (int, error) {
	const query = `SELECT COUNT(1) FROM images WHERE user_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func collectImages(rows *sql.Rows, capacity int) ([]types.Image, error) {
	images := make([]types.Image, 0, capacity)
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}
