package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/saifulabidin/fake-pinterest/internal/mq"
	"github.com/saifulabidin/fake-pinterest/types"
)

const (
	defaultMaxUploadBytes = 10 << 20
	headProbeTimeout      = 5 * time.Second
)

var (
	// ErrInvalidImageURL is returned when a submitted URL is malformed or
	// does not resolve to an image resource.
	ErrInvalidImageURL = errors.New("invalid image url")

	// ErrUnsupportedFileType is returned when an upload's declared MIME
	// type is not an image.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrFileTooLarge is returned when an upload exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file too large")

	// ErrMalformedTags is returned when the tags form field is not a JSON
	// array of strings.
	ErrMalformedTags = errors.New("malformed tags")

	// ErrMissingQuery is returned when a search is attempted without a
	// query string.
	ErrMissingQuery = errors.New("missing search query")

	// ErrForbidden is returned when the principal may not act on the image.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation wraps field-level validation failures.
	ErrValidation = errors.New("validation failed")
)

// ImageRepository defines persistence operations for images.
type ImageRepository interface {
	List(ctx context.Context, offset, limit, ownerID int) ([]types.Image, int, error)
	Search(ctx context.Context, query string, offset, limit int) ([]types.Image, int, error)
	Get(ctx context.Context, id int) (types.Image, error)
	Create(ctx context.Context, image types.Image) (types.Image, error)
	Delete(ctx context.Context, id int) error
	CountByUser(ctx context.Context, userID int) (int, error)
}

// ObjectStore is the slice of the storage layer the ingestion pipeline
// needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// UserDirectory resolves usernames for per-user listings.
type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
}

// ImageService encapsulates image ingestion and query use-cases.
type ImageService struct {
	repo           ImageRepository
	users          UserDirectory
	objects        ObjectStore
	events         *mq.MQ
	logger         *slog.Logger
	headClient     *http.Client
	maxUploadBytes int64
}

// NewImageService wires the ingestion pipeline and query service. objects
// and events may be nil when uploads or eventing are disabled.
func NewImageService(
	repo ImageRepository,
	users UserDirectory,
	objects ObjectStore,
	events *mq.MQ,
	logger *slog.Logger,
	maxUploadBytes int64,
) *ImageService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ImageService{
		repo:           repo,
		users:          users,
		objects:        objects,
		events:         events,
		logger:         logger,
		headClient:     &http.Client{Timeout: headProbeTimeout},
		maxUploadBytes: maxUploadBytes,
	}
}

// MaxUploadBytes returns the upload size ceiling.
func (s *ImageService) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// AddByURLInput is the payload for adding an image hosted elsewhere.
type AddByURLInput struct {
	ImageURL    string
	Title       string
	Description string
	Tags        []string
}

// AddByURL validates a remote image URL and persists an Image owned by the
// caller. The URL must be well-formed and a HEAD probe must answer with a
// success status and an image/* content type. No retries: a timeout or
// transient failure is reported straight back to the caller.
func (s *ImageService) AddByURL(ctx context.Context, owner types.User, in AddByURLInput) (types.Image, error) {
	if strings.TrimSpace(in.ImageURL) == "" {
		return types.Image{}, fmt.Errorf("%w: url is required", ErrInvalidImageURL)
	}

	normalized, err := NormalizeImageURL(in.ImageURL)
	if err != nil {
		return types.Image{}, fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}

	title, description, tags, err := validateImageMeta(in.Title, in.Description, in.Tags)
	if err != nil {
		return types.Image{}, err
	}

	if err := s.probeRemoteImage(ctx, normalized); err != nil {
		return types.Image{}, err
	}

	return s.persist(ctx, owner, types.Image{
		URL:         normalized,
		Title:       title,
		Description: description,
		Tags:        tags,
	})
}

// UploadInput is the payload for a direct file upload.
type UploadInput struct {
	Filename    string
	ContentType string
	Title       string
	Description string
	TagsJSON    string
	Data        []byte
}

// AddUpload stores an uploaded file under a generated name and persists an
// Image pointing at the server's own public URL for it. The client-supplied
// filename only contributes its extension.
func (s *ImageService) AddUpload(ctx context.Context, owner types.User, in UploadInput) (types.Image, error) {
	if s.objects == nil {
		return types.Image{}, errors.New("uploads are not configured")
	}

	if !strings.HasPrefix(strings.ToLower(in.ContentType), "image/") {
		return types.Image{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, in.ContentType)
	}
	if int64(len(in.Data)) > s.maxUploadBytes {
		return types.Image{}, ErrFileTooLarge
	}
	if len(in.Data) == 0 {
		return types.Image{}, fmt.Errorf("%w: file is empty", ErrValidation)
	}

	tags, err := parseTagsJSON(in.TagsJSON)
	if err != nil {
		return types.Image{}, err
	}

	title, description, tags, err := validateImageMeta(in.Title, in.Description, tags)
	if err != nil {
		return types.Image{}, err
	}

	key := xid.New().String() + strings.ToLower(filepath.Ext(in.Filename))
	if err := s.objects.Put(ctx, key, bytes.NewReader(in.Data), int64(len(in.Data)), in.ContentType); err != nil {
		return types.Image{}, fmt.Errorf("storing upload: %w", err)
	}

	image, err := s.persist(ctx, owner, types.Image{
		URL:         s.objects.URL(key),
		Title:       title,
		Description: description,
		Tags:        tags,
	})
	if err != nil {
		// The record never existed; do not leave the file orphaned.
		_ = s.objects.Delete(ctx, key)
		return types.Image{}, err
	}
	return image, nil
}

// List returns a page of images, newest first. ownerID of zero means all
// owners.
func (s *ImageService) List(ctx context.Context, page, limit, ownerID int) ([]types.Image, types.Pagination, error) {
	page, limit = clampPage(page, limit)
	images, total, err := s.repo.List(ctx, (page-1)*limit, limit, ownerID)
	if err != nil {
		return nil, types.Pagination{}, err
	}
	return images, types.NewPagination(total, page, limit), nil
}

// ListByUser returns a page of a user's images plus their public profile.
func (s *ImageService) ListByUser(ctx context.Context, username string, page, limit int) ([]types.Image, types.Pagination, types.PublicProfile, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, types.Pagination{}, types.PublicProfile{}, err
	}

	page, limit = clampPage(page, limit)
	images, total, err := s.repo.List(ctx, (page-1)*limit, limit, user.ID)
	if err != nil {
		return nil, types.Pagination{}, types.PublicProfile{}, err
	}
	return images, types.NewPagination(total, page, limit), user.Public(total), nil
}

// Search performs a relevance-ranked full-text search over titles,
// descriptions, and tags.
func (s *ImageService) Search(ctx context.Context, query string, page, limit int) ([]types.Image, types.Pagination, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.Pagination{}, ErrMissingQuery
	}

	page, limit = clampPage(page, limit)
	images, total, err := s.repo.Search(ctx, query, (page-1)*limit, limit)
	if err != nil {
		return nil, types.Pagination{}, err
	}
	return images, types.NewPagination(total, page, limit), nil
}

// Get fetches a single image.
func (s *ImageService) Get(ctx context.Context, id int) (types.Image, error) {
	return s.repo.Get(ctx, id)
}

// CountByUser returns how many images a user owns.
func (s *ImageService) CountByUser(ctx context.Context, userID int) (int, error) {
	return s.repo.CountByUser(ctx, userID)
}

// Delete removes an image. Only the owner or an admin may delete. When the
// image was a local upload the backing file is removed too; a file that is
// already gone is not an error.
func (s *ImageService) Delete(ctx context.Context, id int, principal types.User) error {
	image, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if image.UserID != principal.ID && !principal.IsAdmin() {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	// The uploads path alone proves nothing; a remote host may serve
	// /uploads/ paths of its own. Only a URL the object store itself would
	// produce for the key identifies a local upload.
	if key, ok := localUploadKey(image.URL); ok && s.objects != nil && image.URL == s.objects.URL(key) {
		if err := s.objects.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to remove upload file",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	s.publishEvent(ctx, mq.ChannelImageDeleted, image)
	return nil
}

func (s *ImageService) persist(ctx context.Context, owner types.User, image types.Image) (types.Image, error) {
	image.UserID = owner.ID
	created, err := s.repo.Create(ctx, image)
	if err != nil {
		return types.Image{}, err
	}

	summary := owner.Summary()
	created.Owner = &summary

	s.publishEvent(ctx, mq.ChannelImageCreated, created)
	return created, nil
}

// probeRemoteImage issues a bounded HEAD request and requires a success
// status with an image content type.
func (s *ImageService) probeRemoteImage(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}

	resp, err := s.headClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: host unreachable", ErrInvalidImageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrInvalidImageURL, resp.StatusCode)
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("%w: content type %q", ErrInvalidImageURL, contentType)
	}
	return nil
}

// publishEvent emits an image lifecycle event when a broker is configured.
// Broker trouble never fails the request.
func (s *ImageService) publishEvent(ctx context.Context, channel string, image types.Image) {
	if s.events == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"imageId": image.ID,
		"userId":  image.UserID,
		"url":     image.URL,
	})
	if err != nil {
		return
	}

	if _, err := s.events.Publish(ctx, channel, payload, map[string]string{
		"image_id": strconv.Itoa(image.ID),
	}); err != nil {
		s.logger.Warn("failed to publish image event",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// validateImageMeta enforces the schema limits on title, description, and
// tags, normalizing tags to trimmed lowercase.
func validateImageMeta(title, description string, tags []string) (string, string, []string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(title) > types.MaxTitleLen {
		return "", "", nil, fmt.Errorf("%w: title exceeds %d characters", ErrValidation, types.MaxTitleLen)
	}

	description = strings.TrimSpace(description)
	if len(description) > types.MaxDescriptionLen {
		return "", "", nil, fmt.Errorf("%w: description exceeds %d characters", ErrValidation, types.MaxDescriptionLen)
	}

	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if len(tag) > types.MaxTagLen {
			return "", "", nil, fmt.Errorf("%w: tag exceeds %d characters", ErrValidation, types.MaxTagLen)
		}
		normalized = append(normalized, tag)
	}

	return title, description, normalized, nil
}

// parseTagsJSON decodes the multipart form's tags field, a JSON-encoded
// array of strings. An empty field means no tags.
func parseTagsJSON(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTags, err)
	}
	return tags, nil
}
