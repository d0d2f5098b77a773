// Package imagestore keeps local copies of employee images and serves
// them under a public base URL.
package imagestore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/locvowork/employee_directory/internal/logger"
	"github.com/locvowork/employee_directory/internal/source/httpx"
)

// LocalStore implements domain.ImageStore on the local filesystem. Each
// image is stored as <employee id>.png; the file's mtime mirrors the
// source's Last-Modified so later fetches can be conditional.
type LocalStore struct {
	dir           string
	publicBaseURL string
	http          *httpx.Client
	forceUpload   bool
}

// NewLocalStore creates dir if needed. publicBaseURL is the URL prefix the
// directory is served under, e.g. "https://host/images".
func NewLocalStore(dir, publicBaseURL string, hc *httpx.Client, forceUpload bool) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid image directory '%s': %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory '%s': %w", abs, err)
	}
	return &LocalStore{
		dir:           abs,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		http:          hc,
		forceUpload:   forceUpload,
	}, nil
}

// Dir returns the absolute directory images are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save fetches sourceURI and stores it for the employee, returning the
// public URL. When a copy exists and the source answers 304 the existing
// URL is returned without rewriting the file.
func (s *LocalStore) Save(ctx context.Context, employeeID uuid.UUID, sourceURI string) (string, error) {
	if sourceURI == "" {
		return "", fmt.Errorf("empty image source for %s", employeeID)
	}

	name := employeeID.String() + ".png"
	target := filepath.Join(s.dir, name)
	publicURL := s.publicBaseURL + "/" + name

	var ifModifiedSince string
	if info, err := os.Stat(target); err == nil && !s.forceUpload {
		ifModifiedSince = info.ModTime().UTC().Format(http.TimeFormat)
	}

	resp, body, err := s.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURI, nil)
		if err != nil {
			return nil, err
		}
		if ifModifiedSince != "" {
			req.Header.Set("If-Modified-Since", ifModifiedSince)
		}
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch image %s: %w", sourceURI, err)
	}
	if resp.StatusCode == http.StatusNotModified {
		logger.DebugLog(ctx, "Image for %s not modified", employeeID)
		return publicURL, nil
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to move image into place: %w", err)
	}

	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		if err := os.Chtimes(target, lm, lm); err != nil {
			logger.WarnLog(ctx, "Failed to set image mtime for %s: %v", employeeID, err)
		}
	} else {
		// without Last-Modified the next fetch must not be skipped on our clock
		old := time.Unix(0, 0)
		_ = os.Chtimes(target, old, old)
	}

	return publicURL, nil
}

// Delete removes the file a stored URL points to. Unknown files are ignored.
func (s *LocalStore) Delete(ctx context.Context, storedURL string) error {
	u, err := url.Parse(storedURL)
	if err != nil {
		return fmt.Errorf("invalid image url %q: %w", storedURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid image url %q", storedURL)
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image %s: %w", name, err)
	}
	logger.InfoLog(ctx, "Deleted image %s", name)
	return nil
}

// Owns reports whether url was produced by this store.
func (s *LocalStore) Owns(storedURL string) bool {
	return strings.HasPrefix(storedURL, s.publicBaseURL+"/")
}
