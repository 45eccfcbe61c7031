package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saifulabidin/fake-pinterest/internal/auth"
	"github.com/saifulabidin/fake-pinterest/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestSessionResolution(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		h := newHarness()

		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if body := decodeError(t, rec); body.Error != codeUnauthorized {
			t.Fatalf("error code = %q, want %q", body.Error, codeUnauthorized)
		}
	})

	t.Run("valid session cookie", func(t *testing.T) {
		h := newHarness()
		user, session := h.login("jane")

		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: session.Token})
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var got types.User
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode user: %v", err)
		}
		if got.ID != user.ID || got.Username != "jane" {
			t.Fatalf("unexpected principal: %+v", got)
		}
		if h.verifier.verifyCalls != 0 {
			t.Fatal("a live session must short-circuit token verification")
		}
	})

	t.Run("bearer token is exchanged for a session", func(t *testing.T) {
		h := newHarness()
		h.verifier.token = "good-token"
		h.verifier.identity = auth.Identity{
			UID:         "uid-42",
			Provider:    "github.com",
			Email:       "jane@example.com",
			DisplayName: "Jane Doe",
		}

		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		cookie := responseCookie(rec, testCookieName)
		if cookie == nil || cookie.Value == "" {
			t.Fatal("expected a session cookie to be set")
		}
		if !cookie.HttpOnly {
			t.Fatal("session cookie must be HttpOnly")
		}
		if _, err := h.sessions.GetByToken(req.Context(), cookie.Value); err != nil {
			t.Fatalf("cookie does not match a stored session: %v", err)
		}
		if len(h.users.users) != 1 {
			t.Fatalf("expected the account to be created, have %d users", len(h.users.users))
		}
	})

	t.Run("invalid bearer token", func(t *testing.T) {
		h := newHarness()
		h.verifier.token = "good-token"

		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if body := decodeError(t, rec); body.Error != codeInvalidToken {
			t.Fatalf("error code = %q, want %q", body.Error, codeInvalidToken)
		}
	})

	t.Run("token from disallowed provider", func(t *testing.T) {
		h := newHarness()
		h.verifier.err = auth.ErrUnsupportedProvider

		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if body := decodeError(t, rec); body.Error != codeUnsupportedProvider {
			t.Fatalf("error code = %q, want %q", body.Error, codeUnsupportedProvider)
		}
	})

	t.Run("expired cookie falls back to bearer token", func(t *testing.T) {
		h := newHarness()
		user, _ := h.login("jane")
		h.sessions.sessions["expired"] = types.Session{
			Token:     "expired",
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		h.verifier.token = "good-token"
		h.verifier.identity = auth.Identity{UID: "uid-jane"}

		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: "expired"})
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if h.verifier.verifyCalls != 1 {
			t.Fatalf("verifier calls = %d, want 1", h.verifier.verifyCalls)
		}
	})

	t.Run("session for a deleted user is terminal", func(t *testing.T) {
		h := newHarness()
		h.sessions.sessions["orphan"] = types.Session{
			Token:     "orphan",
			UserID:    99,
			ExpiresAt: time.Now().Add(time.Hour),
		}
		h.verifier.token = "good-token"
		h.verifier.identity = auth.Identity{UID: "uid-42"}

		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: "orphan"})
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if body := decodeError(t, rec); body.Error != codeUserNotFound {
			t.Fatalf("error code = %q, want %q", body.Error, codeUserNotFound)
		}
		if h.verifier.verifyCalls != 0 {
			t.Fatal("a dangling session must not fall back to the bearer token")
		}

		cookie := responseCookie(rec, testCookieName)
		if cookie == nil || cookie.MaxAge != -1 {
			t.Fatal("expected the dangling session cookie to be cleared")
		}
	})

	t.Run("optional auth continues without credentials", func(t *testing.T) {
		h := newHarness()

		req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		h := newHarness()

		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}
