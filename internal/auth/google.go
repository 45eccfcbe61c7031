package auth

import (
	"context"
	"fmt"

	"github.com/saifulabidin/fake-pinterest/config"
	"google.golang.org/api/idtoken"
)

// GoogleVerifier delegates ID token validation to Google's idtoken service.
// It is the right backend when tokens come straight from "Sign in with
// Google" rather than the identity platform SDK.
type GoogleVerifier struct {
	projectID string
	provider  string
}

// NewGoogleVerifier constructs a verifier for the configured project.
func NewGoogleVerifier(cfg config.AuthConfig) *GoogleVerifier {
	return &GoogleVerifier{
		projectID: cfg.ProjectID,
		provider:  cfg.Provider,
	}
}

// Verify validates the token against the project audience and returns the
// identity carried by its claims.
func (v *GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	payload, err := idtoken.Validate(ctx, token, v.projectID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// Tokens issued through the identity platform carry the sign-in
	// provider in a nested claim; plain Google tokens do not.
	provider := "google.com"
	if firebaseClaim, ok := payload.Claims["firebase"].(map[string]any); ok {
		if p, ok := firebaseClaim["sign_in_provider"].(string); ok && p != "" {
			provider = p
		}
	}
	if err := checkProvider(provider, v.provider); err != nil {
		return Identity{}, err
	}

	return Identity{
		UID:         payload.Subject,
		Provider:    provider,
		Email:       stringClaim(payload.Claims, "email"),
		DisplayName: stringClaim(payload.Claims, "name"),
		PhotoURL:    stringClaim(payload.Claims, "picture"),
	}, nil
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return value
}
