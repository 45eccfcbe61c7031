package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/saifulabidin/fake-pinterest/internal/services"
	"github.com/saifulabidin/fake-pinterest/internal/store"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// Error codes surfaced in API error bodies.
const (
	codeMissingToken        = "MISSING_TOKEN"
	codeInvalidToken        = "INVALID_TOKEN"
	codeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	codeUserNotFound        = "USER_NOT_FOUND"
	codeUnauthorized        = "UNAUTHORIZED_ACCESS"
	codeInvalidImageURL     = "INVALID_IMAGE_URL"
	codeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	codeFileTooLarge        = "FILE_TOO_LARGE"
	codeMalformedTags       = "MALFORMED_TAGS"
	codeNotFound            = "NOT_FOUND"
	codeForbidden           = "FORBIDDEN"
	codeMissingQuery        = "MISSING_QUERY"
	codeValidation          = "VALIDATION_ERROR"
	codeServerError         = "SERVER_ERROR"
)

// ErrorResponse is the error payload: a stable machine code and a human
// message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeServiceError maps service- and store-layer sentinels to HTTP
// responses. Unanticipated errors become a 500 with detail suppressed.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidImageURL):
		writeError(w, http.StatusBadRequest, codeInvalidImageURL, err.Error())
	case errors.Is(err, services.ErrUnsupportedFileType):
		writeError(w, http.StatusBadRequest, codeUnsupportedFileType, err.Error())
	case errors.Is(err, services.ErrFileTooLarge):
		writeError(w, http.StatusBadRequest, codeFileTooLarge, err.Error())
	case errors.Is(err, services.ErrMalformedTags):
		writeError(w, http.StatusBadRequest, codeMalformedTags, err.Error())
	case errors.Is(err, services.ErrMissingQuery):
		writeError(w, http.StatusBadRequest, codeMissingQuery, err.Error())
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, "you do not own this resource")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
	default:
		writeError(w, http.StatusInternalServerError, codeServerError, "internal server error")
	}
}

func parsePagination(r *http.Request) (page, limit int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, nil
}

func parseImageID(r *http.Request, param string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid image id")
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
