package services

import (
	"errors"
	"net/url"
	"strings"
)

// NormalizeImageURL validates and normalizes a caller-supplied image URL.
// Inputs without a scheme get an https:// prefix; the result must carry a
// scheme and a host. This runs explicitly before persistence so the
// transformation is visible and testable on its own.
func NormalizeImageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("url is empty")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("url scheme must be http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("url has no host")
	}

	return parsed.String(), nil
}

// localUploadKey extracts the candidate object key from a URL's uploads
// path. The path alone does not prove the upload is ours; callers must
// confirm the full URL against the object store before acting on the key.
func localUploadKey(imageURL string) (string, bool) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "", false
	}
	const prefix = "/uploads/"
	if !strings.HasPrefix(parsed.Path, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(parsed.Path, prefix)
	if key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}
