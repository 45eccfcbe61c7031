package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/saifulabidin/fake-pinterest/config"
)

// LocalClient stores objects as plain files in the uploads directory. The
// API process serves that directory itself, so the public URL is built from
// the server's own base URL.
type LocalClient struct {
	dir           string
	publicBaseURL string
}

// NewLocalClient constructs a local-disk backend rooted at the configured
// uploads directory. publicBaseURL is the server's externally reachable
// origin, e.g. "http://localhost:8080".
func NewLocalClient(cfg config.LocalStorageConfig, publicBaseURL string) (*LocalClient, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("uploads directory is required")
	}
	return &LocalClient{
		dir:           cfg.Dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// EnsureBucket creates the uploads directory if it does not exist.
func (l *LocalClient) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(l.dir, 0o755)
}

// Put writes an object to the uploads directory. Keys are server-generated;
// anything that would escape the directory is rejected.
func (l *LocalClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	path, err := l.objectPath(key)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("writing upload file: %w", err)
	}
	return file.Close()
}

// Get opens a stored object.
func (l *LocalClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := l.objectPath(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes a stored object. A file that is already gone is treated as
// deleted.
func (l *LocalClient) Delete(ctx context.Context, key string) error {
	path, err := l.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns the publicly reachable URL for a stored object.
func (l *LocalClient) URL(key string) string {
	return l.publicBaseURL + "/uploads/" + key
}

// Bucket returns the uploads directory path.
func (l *LocalClient) Bucket() string {
	return l.dir
}

// Dir returns the uploads directory so the server can mount a file handler
// over it.
func (l *LocalClient) Dir() string {
	return l.dir
}

func (l *LocalClient) objectPath(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.dir, key), nil
}
