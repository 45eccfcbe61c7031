package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/saifulabidin/fake-pinterest/internal/auth"
	"github.com/saifulabidin/fake-pinterest/types"
)

func TestFirebaseAuth(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		h := newHarness()

		req := httptest.NewRequest(http.MethodPost, "/api/auth/firebase-auth", strings.NewReader(`{"idToken":""}`))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if body := decodeError(t, rec); body.Error != codeMissingToken {
			t.Fatalf("error code = %q, want %q", body.Error, codeMissingToken)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		h := newHarness()

		req := httptest.NewRequest(http.MethodPost, "/api/auth/firebase-auth", strings.NewReader("not json"))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		h := newHarness()
		h.verifier.token = "good-token"

		req := httptest.NewRequest(http.MethodPost, "/api/auth/firebase-auth", strings.NewReader(`{"idToken":"forged"}`))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if body := decodeError(t, rec); body.Error != codeInvalidToken {
			t.Fatalf("error code = %q, want %q", body.Error, codeInvalidToken)
		}
	})

	t.Run("unsupported provider", func(t *testing.T) {
		h := newHarness()
		h.verifier.err = auth.ErrUnsupportedProvider

		req := httptest.NewRequest(http.MethodPost, "/api/auth/firebase-auth", strings.NewReader(`{"idToken":"google-token"}`))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if body := decodeError(t, rec); body.Error != codeUnsupportedProvider {
			t.Fatalf("error code = %q, want %q", body.Error, codeUnsupportedProvider)
		}
	})

	t.Run("successful sign-in", func(t *testing.T) {
		h := newHarness()
		h.verifier.token = "good-token"
		h.verifier.identity = auth.Identity{
			UID:         "uid-42",
			Provider:    "github.com",
			Email:       "jane@example.com",
			DisplayName: "Jane Doe",
		}

		req := httptest.NewRequest(http.MethodPost, "/api/auth/firebase-auth", strings.NewReader(`{"idToken":"good-token"}`))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var user types.User
		if err := json.NewDecoder(rec.Body).Decode(&user); err != nil {
			t.Fatalf("decode user: %v", err)
		}
		if user.FirebaseUID != "uid-42" || user.Username != "jane-doe" {
			t.Fatalf("unexpected user: %+v", user)
		}

		cookie := responseCookie(rec, testCookieName)
		if cookie == nil || cookie.Value == "" {
			t.Fatal("expected session cookie")
		}
	})
}

func TestPublicProfile(t *testing.T) {
	h := newHarness()
	user, _ := h.login("jane")
	h.images.add(types.Image{Title: "One", UserID: user.ID})
	h.images.add(types.Image{Title: "Two", UserID: user.ID})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user/jane", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var profile types.PublicProfile
	if err := json.NewDecoder(rec.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Username != "jane" || profile.ImageCount != 2 {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/user/nobody", nil)
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	h := newHarness()
	_, session := h.login("jane")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: session.Token})
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if _, ok := h.sessions.sessions[session.Token]; ok {
		t.Fatal("session should be destroyed")
	}

	cookie := responseCookie(rec, testCookieName)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Fatal("expected the session cookie to be cleared")
	}

	// Logging out while anonymous is fine.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous logout status = %d, want 200", rec.Code)
	}
}
