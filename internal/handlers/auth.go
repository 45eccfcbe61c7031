package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/saifulabidin/fake-pinterest/internal/auth"
	"github.com/saifulabidin/fake-pinterest/internal/services"
	"github.com/saifulabidin/fake-pinterest/internal/store"
)

// AuthHandler provides sign-in, profile, and logout endpoints.
type AuthHandler struct {
	resolver     *SessionResolver
	verifier     auth.Verifier
	userService  *services.UserService
	imageService *services.ImageService
	sessions     *services.SessionService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(
	resolver *SessionResolver,
	verifier auth.Verifier,
	userService *services.UserService,
	imageService *services.ImageService,
	sessions *services.SessionService,
) *AuthHandler {
	return &AuthHandler{
		resolver:     resolver,
		verifier:     verifier,
		userService:  userService,
		imageService: imageService,
		sessions:     sessions,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(
	r chi.Router,
	resolver *SessionResolver,
	verifier auth.Verifier,
	userService *services.UserService,
	imageService *services.ImageService,
	sessions *services.SessionService,
) {
	handler := NewAuthHandler(resolver, verifier, userService, imageService, sessions)

	r.Post("/firebase-auth", handler.FirebaseAuth)
	r.With(resolver.EnsureAuthenticated).Get("/user", handler.CurrentUser)
	r.Get("/user/{username}", handler.PublicProfile)
	r.Get("/logout", handler.Logout)
}

// FirebaseAuthRequest is the sign-in payload.
type FirebaseAuthRequest struct {
	IDToken string `json:"idToken"`
}

// FirebaseAuth exchanges an identity-provider ID token for a server-side
// session and the local user record, creating the account on first sign-in.
func (h *AuthHandler) FirebaseAuth(w http.ResponseWriter, r *http.Request) {
	var req FirebaseAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	req.IDToken = strings.TrimSpace(req.IDToken)
	if req.IDToken == "" {
		writeError(w, http.StatusBadRequest, codeMissingToken, "idToken is required")
		return
	}

	identity, err := h.verifier.Verify(r.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, auth.ErrUnsupportedProvider) {
			writeError(w, http.StatusForbidden, codeUnsupportedProvider, "sign-in provider is not supported")
			return
		}
		writeError(w, http.StatusUnauthorized, codeInvalidToken, "token verification failed")
		return
	}

	user, err := h.userService.FindOrCreate(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "failed to resolve user")
		return
	}

	session, err := h.sessions.Mint(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "failed to create session")
		return
	}
	h.resolver.setCookie(w, session)

	writeJSON(w, http.StatusOK, user)
}

// CurrentUser returns the authenticated principal.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

// PublicProfile returns the anonymous-facing profile for a username,
// including how many images the user owns.
func (h *AuthHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.userService.GetByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, codeServerError, "failed to load user")
		return
	}

	count, err := h.imageService.CountByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user.Public(count))
}

// Logout destroys the caller's session, if any.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.resolver.cookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			writeError(w, http.StatusInternalServerError, codeServerError, "failed to log out")
			return
		}
	}
	h.resolver.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
