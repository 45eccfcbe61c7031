package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/saifulabidin/fake-pinterest/internal/auth"
	"github.com/saifulabidin/fake-pinterest/internal/services"
	"github.com/saifulabidin/fake-pinterest/internal/store"
	"github.com/saifulabidin/fake-pinterest/types"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// authOutcome is the result of resolving a request's credentials: either an
// authenticated principal, or a reason code.
type authOutcome struct {
	principal *types.User
	reason    string
}

func (o authOutcome) authenticated() bool {
	return o.principal != nil
}

// SessionResolver decides, per request, whether the caller is
// authenticated: an existing server-side session wins, otherwise a bearer
// ID token is verified and exchanged for a fresh session. Both paths
// normalize into the same principal.
type SessionResolver struct {
	sessions   *services.SessionService
	users      *services.UserService
	verifier   auth.Verifier
	cookieName string
}

// NewSessionResolver constructs the resolver used by all auth middleware.
func NewSessionResolver(
	sessions *services.SessionService,
	users *services.UserService,
	verifier auth.Verifier,
	cookieName string,
) *SessionResolver {
	return &SessionResolver{
		sessions:   sessions,
		users:      users,
		verifier:   verifier,
		cookieName: cookieName,
	}
}

// resolve runs the per-request authentication state machine. It may write a
// session cookie onto the response when a bearer token is exchanged for a
// session, but it never writes a status.
func (sr *SessionResolver) resolve(w http.ResponseWriter, r *http.Request) authOutcome {
	ctx := r.Context()

	// 1. Existing session.
	if cookie, err := r.Cookie(sr.cookieName); err == nil && cookie.Value != "" {
		user, err := sr.sessions.Resolve(ctx, cookie.Value)
		switch {
		case err == nil:
			return authOutcome{principal: &user}
		case errors.Is(err, services.ErrUserNotFound):
			// The session pointed at a user that no longer exists; the
			// service already destroyed it.
			sr.clearCookie(w)
			return authOutcome{reason: codeUserNotFound}
		case errors.Is(err, store.ErrNotFound):
			// Stale or expired cookie. Fall through to the bearer token.
			sr.clearCookie(w)
		default:
			return authOutcome{reason: codeServerError}
		}
	}

	// 2. Bearer ID token.
	token, err := bearerToken(r)
	if err != nil {
		return authOutcome{reason: codeUnauthorized}
	}

	identity, err := sr.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrUnsupportedProvider) {
			return authOutcome{reason: codeUnsupportedProvider}
		}
		return authOutcome{reason: codeInvalidToken}
	}

	user, err := sr.users.FindOrCreate(ctx, identity)
	if err != nil {
		return authOutcome{reason: codeServerError}
	}

	// Mint a session so later requests skip token verification. A broken
	// session store only costs re-verification, not the request.
	if session, err := sr.sessions.Mint(ctx, user.ID); err == nil {
		sr.setCookie(w, session)
	}

	return authOutcome{principal: &user}
}

// EnsureAuthenticated rejects any request that does not resolve to a
// principal.
func (sr *SessionResolver) EnsureAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := sr.resolve(w, r)
		if !outcome.authenticated() {
			writeError(w, http.StatusUnauthorized, outcome.reason, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), outcome.principal)))
	})
}

// CheckAuthentication resolves the caller but always continues; downstream
// handlers see the principal when there is one.
func (sr *SessionResolver) CheckAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := sr.resolve(w, r)
		if outcome.authenticated() {
			r = r.WithContext(withPrincipal(r.Context(), outcome.principal))
		}
		next.ServeHTTP(w, r)
	})
}

// ResourceOwner gates a request on ownership of the resource the lookup
// resolves. Admins pass regardless of ownership. Runs after
// EnsureAuthenticated.
func (sr *SessionResolver) ResourceOwner(lookup func(r *http.Request) (int, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := principalFromContext(r.Context())
			if principal == nil {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
				return
			}

			ownerID, err := lookup(r)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
					return
				}
				writeServiceError(w, err)
				return
			}

			if ownerID != principal.ID && !principal.IsAdmin() {
				writeError(w, http.StatusForbidden, codeForbidden, "you do not own this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (sr *SessionResolver) setCookie(w http.ResponseWriter, session types.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sr.cookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (sr *SessionResolver) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sr.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func withPrincipal(ctx context.Context, user *types.User) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, user)
}

func principalFromContext(ctx context.Context) *types.User {
	user, _ := ctx.Value(contextPrincipalKey).(*types.User)
	return user
}
