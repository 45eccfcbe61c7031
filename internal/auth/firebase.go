package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/saifulabidin/fake-pinterest/config"
)

// Google publishes the x509 certificates used to sign identity platform
// ID tokens at this well-known endpoint, keyed by kid.
const defaultCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken%40system.gserviceaccount.com"

const (
	certsFetchTimeout  = 10 * time.Second
	minCertCacheExpiry = 1 * time.Minute
)

// FirebaseVerifier validates identity platform ID tokens locally: it
// fetches Google's signing certificates, verifies the RS256 signature with
// golang-jwt, and checks issuer, audience, and the sign-in provider claim.
type FirebaseVerifier struct {
	projectID string
	provider  string
	certsURL  string
	client    *http.Client

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

// NewFirebaseVerifier constructs a verifier for the configured project.
func NewFirebaseVerifier(cfg config.AuthConfig) *FirebaseVerifier {
	return &FirebaseVerifier{
		projectID: cfg.ProjectID,
		provider:  cfg.Provider,
		certsURL:  defaultCertsURL,
		client:    &http.Client{Timeout: certsFetchTimeout},
	}
}

// idTokenClaims is the subset of identity platform claims the app consumes.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	Firebase struct {
		SignInProvider string              `json:"sign_in_provider"`
		Identities     map[string][]string `json:"identities"`
	} `json:"firebase"`
}

// Verify checks the token signature and claims and returns the identity.
func (v *FirebaseVerifier) Verify(ctx context.Context, tokenString string) (Identity, error) {
	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token has no kid header")
			}
			return v.signingKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	if err := checkProvider(claims.Firebase.SignInProvider, v.provider); err != nil {
		return Identity{}, err
	}

	identity := Identity{
		UID:         claims.Subject,
		Provider:    claims.Firebase.SignInProvider,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}
	if ids := claims.Firebase.Identities[claims.Firebase.SignInProvider]; len(ids) > 0 {
		identity.ProviderID = ids[0]
	}
	return identity, nil
}

// signingKey returns the public key for kid, refreshing the certificate
// cache when it is stale or the kid is unknown.
func (v *FirebaseVerifier) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, fresh := v.keys[kid], time.Now().Before(v.expires)
	v.mu.RUnlock()
	if key != nil && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	key = v.keys[kid]
	v.mu.RUnlock()
	if key == nil {
		return nil, fmt.Errorf("no signing certificate for kid %q", kid)
	}
	return key, nil
}

func (v *FirebaseVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching signing certificates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("certificate endpoint returned status %d", resp.StatusCode)
	}

	var pemCerts map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&pemCerts); err != nil {
		return fmt.Errorf("decoding signing certificates: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(pemCerts))
	for kid, pemCert := range pemCerts {
		key, err := parseRSAPublicKeyFromCert(pemCert)
		if err != nil {
			return fmt.Errorf("parsing certificate %q: %w", kid, err)
		}
		keys[kid] = key
	}
	if len(keys) == 0 {
		return errors.New("certificate endpoint returned no certificates")
	}

	expires := time.Now().Add(cacheMaxAge(resp.Header.Get("Cache-Control")))

	v.mu.Lock()
	v.keys = keys
	v.expires = expires
	v.mu.Unlock()
	return nil
}

func parseRSAPublicKeyFromCert(pemCert string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemCert))
	if block == nil {
		return nil, errors.New("not PEM encoded")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate does not carry an RSA key")
	}
	return key, nil
}

// cacheMaxAge extracts max-age from a Cache-Control header, with a floor so
// a missing or hostile header cannot force a fetch per request.
func cacheMaxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "max-age=") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
		if err != nil || seconds <= 0 {
			break
		}
		age := time.Duration(seconds) * time.Second
		if age < minCertCacheExpiry {
			return minCertCacheExpiry
		}
		return age
	}
	return minCertCacheExpiry
}
