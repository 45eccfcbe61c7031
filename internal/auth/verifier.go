// Package auth verifies identity-provider ID tokens and turns them into
// external identities the user directory can resolve.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/saifulabidin/fake-pinterest/config"
)

var (
	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnsupportedProvider is returned when a token verifies but was
	// issued through a sign-in provider outside the allow-list.
	ErrUnsupportedProvider = errors.New("unsupported sign-in provider")
)

// Identity is the verified external identity carried by an ID token.
type Identity struct {
	// UID is the identity platform's stable subject identifier.
	UID string

	// Provider is the upstream sign-in provider, e.g. "github.com".
	Provider string

	// ProviderID is the provider-local account id, when the token carries
	// one (kept as the legacy OAuth id on the user record).
	ProviderID string

	Email       string
	DisplayName string
	PhotoURL    string
}

// Verifier turns an opaque bearer token into a verified external identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// NewVerifier constructs the configured verifier backend.
func NewVerifier(cfg config.AuthConfig) (Verifier, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("auth project id is required")
	}

	switch cfg.Backend {
	case "firebase":
		return NewFirebaseVerifier(cfg), nil
	case "google":
		return NewGoogleVerifier(cfg), nil
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.Backend)
	}
}

// checkProvider enforces the single-provider allow-list.
func checkProvider(provider, allowed string) error {
	if allowed != "" && provider != allowed {
		return ErrUnsupportedProvider
	}
	return nil
}
