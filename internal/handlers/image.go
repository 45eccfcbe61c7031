package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/saifulabidin/fake-pinterest/internal/services"
	"github.com/saifulabidin/fake-pinterest/internal/store"
	"github.com/saifulabidin/fake-pinterest/types"
)

const (
	maxMultipartMemory = 32 << 20

	formFieldFile  = "file"
	formFieldTitle = "title"
	formFieldDesc  = "description"
	formFieldTags  = "tags"
)

// ImageHandler provides HTTP handlers for the image catalog.
type ImageHandler struct {
	imageService *services.ImageService
}

// NewImageHandler constructs a handler over the image service.
func NewImageHandler(imageService *services.ImageService) *ImageHandler {
	return &ImageHandler{imageService: imageService}
}

// ImageRouter registers image routes on the given router.
func ImageRouter(r chi.Router, imageService *services.ImageService, resolver *SessionResolver) {
	handler := NewImageHandler(imageService)

	r.With(resolver.CheckAuthentication).Get("/", handler.ListImages)
	r.Get("/search", handler.SearchImages)
	r.With(resolver.EnsureAuthenticated).Get("/myimages", handler.MyImages)
	r.Get("/user/{username}", handler.UserImages)
	r.With(resolver.EnsureAuthenticated).Post("/url", handler.AddByURL)
	r.With(resolver.EnsureAuthenticated).Post("/upload", handler.Upload)
	r.Route("/{imageID}", func(r chi.Router) {
		r.Get("/", handler.GetImage)
		r.With(resolver.EnsureAuthenticated, resolver.ResourceOwner(handler.imageOwner)).
			Delete("/", handler.DeleteImage)
	})
}

// ImageListResponse is the paginated list response payload.
type ImageListResponse struct {
	Images     []types.Image    `json:"images"`
	Pagination types.Pagination `json:"pagination"`
}

// SearchResponse echoes the query back alongside the results.
type SearchResponse struct {
	Images     []types.Image    `json:"images"`
	Pagination types.Pagination `json:"pagination"`
	Query      string           `json:"query"`
}

// UserImagesResponse carries one user's images plus their public profile.
type UserImagesResponse struct {
	Images     []types.Image       `json:"images"`
	Pagination types.Pagination    `json:"pagination"`
	User       types.PublicProfile `json:"user"`
}

func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	images, pagination, err := h.imageService.List(r.Context(), page, limit, 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ImageListResponse{Images: images, Pagination: pagination})
}

func (h *ImageHandler) SearchImages(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	query := r.URL.Query().Get("q")
	images, pagination, err := h.imageService.Search(r.Context(), query, page, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Images:     images,
		Pagination: pagination,
		Query:      strings.TrimSpace(query),
	})
}

// MyImages returns every image the caller owns, unpaginated.
func (h *ImageHandler) MyImages(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	total, err := h.imageService.CountByUser(r.Context(), principal.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	images := []types.Image{}
	if total > 0 {
		images, _, err = h.imageService.List(r.Context(), 1, total, principal.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, images)
}

func (h *ImageHandler) UserImages(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	username := chi.URLParam(r, "username")
	images, pagination, profile, err := h.imageService.ListByUser(r.Context(), username, page, limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "user not found")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserImagesResponse{
		Images:     images,
		Pagination: pagination,
		User:       profile,
	})
}

func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	// A structurally invalid id can never name an image.
	id, err := parseImageID(r, "imageID")
	if err != nil {
		writeError(w, http.StatusNotFound, codeNotFound, "image not found")
		return
	}

	image, err := h.imageService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "image not found")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, image)
}

// AddByURLRequest is the JSON payload for registering a remote image.
type AddByURLRequest struct {
	ImageURL    string   `json:"imageUrl"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (h *ImageHandler) AddByURL(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	var req AddByURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	image, err := h.imageService.AddByURL(r.Context(), *principal, services.AddByURLInput{
		ImageURL:    req.ImageURL,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, image)
}

func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid multipart form")
		return
	}

	upload, err := parseUploadFile(r.MultipartForm, h.imageService.MaxUploadBytes())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	upload.Title = r.FormValue(formFieldTitle)
	upload.Description = r.FormValue(formFieldDesc)
	upload.TagsJSON = r.FormValue(formFieldTags)

	image, err := h.imageService.AddUpload(r.Context(), *principal, upload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, image)
}

func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}

	id, err := parseImageID(r, "imageID")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	if err := h.imageService.Delete(r.Context(), id, *principal); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "image not found")
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "image deleted",
		"imageId": id,
	})
}

// imageOwner resolves the owner of the image addressed by the request path.
func (h *ImageHandler) imageOwner(r *http.Request) (int, error) {
	id, err := parseImageID(r, "imageID")
	if err != nil {
		return 0, store.ErrNotFound
	}

	image, err := h.imageService.Get(r.Context(), id)
	if err != nil {
		return 0, err
	}
	return image.UserID, nil
}

func parseUploadFile(form *multipart.Form, maxBytes int64) (services.UploadInput, error) {
	if form == nil {
		return services.UploadInput{}, fmt.Errorf("%w: missing form data", services.ErrValidation)
	}

	files := form.File[formFieldFile]
	if len(files) == 0 {
		return services.UploadInput{}, fmt.Errorf("%w: file is required", services.ErrValidation)
	}
	if len(files) > 1 {
		return services.UploadInput{}, fmt.Errorf("%w: only one file is allowed", services.ErrValidation)
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return services.UploadInput{}, fmt.Errorf("%w: failed to read file", services.ErrValidation)
	}

	data, err := readFileLimited(file, maxBytes)
	_ = file.Close()
	if err != nil {
		return services.UploadInput{}, err
	}

	return services.UploadInput{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read upload", services.ErrValidation)
	}
	if int64(len(data)) > limit {
		return nil, services.ErrFileTooLarge
	}
	return data, nil
}
