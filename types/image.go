package types

import (
	"math"
	"time"
)

// Limits enforced by the images schema.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
	MaxTagLen         = 30
)

// Image represents a shared image: either a link to a remote host or a
// file uploaded to this server's own object storage.
type Image struct {
	// ID is the unique identifier of the image.
	ID int `json:"id" db:"id"`

	// URL is where the image bytes live. Always carries a scheme; bare
	// host/path inputs are normalized with an https:// prefix before
	// persistence.
	URL string `json:"url" db:"url"`

	// Title is a short caption, at most MaxTitleLen characters.
	Title string `json:"title" db:"title"`

	// Description is an optional longer text, at most MaxDescriptionLen
	// characters.
	Description string `json:"description,omitempty" db:"description"`

	// Tags are lowercase free-form labels used for categorization and
	// search, each at most MaxTagLen characters.
	Tags []string `json:"tags" db:"tags"`

	// UserID identifies the owning user. Set at creation, never reassigned.
	UserID int `json:"userId" db:"user_id"`

	// Likes is the set of user ids that liked the image. The like/unlike
	// routes are not part of the current API; the column is kept for the
	// front end's counter.
	Likes []int64 `json:"likes" db:"likes"`

	// Owner is the joined owner projection. Populated on reads, not stored
	// on the images row itself.
	Owner *UserSummary `json:"user,omitempty" db:"-"`

	// CreatedAt is the timestamp at which the image was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the image.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Pagination is the envelope returned with every image listing.
type Pagination struct {
	// Total is the number of matching rows across all pages.
	Total int `json:"total"`

	// Page is the 1-based page that was served.
	Page int `json:"page"`

	// Limit is the page size that was applied.
	Limit int `json:"limit"`

	// Pages is ceil(Total/Limit).
	Pages int `json:"pages"`
}

// NewPagination builds the envelope for a listing result.
func NewPagination(total, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	}
}
