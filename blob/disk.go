// Package blob is the local stand-in for the hosted blob store: uploads
// land under a root directory and are served back as URLs.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type DiskStore struct {
	root    string
	baseURL string
}

func NewDiskStore(root, baseURL string) *DiskStore {
	return &DiskStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *DiskStore) Upload(ctx context.Context, path string, data []byte) error {
	clean, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return err
	}
	return os.WriteFile(clean, data, 0o644)
}

// GetURL returns the public URL for an uploaded path. The blob must
// exist; a URL for a missing object would render as a broken avatar.
func (s *DiskStore) GetURL(path string) (string, error) {
	clean, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(clean); err != nil {
		return "", err
	}
	return s.baseURL + "/" + filepath.ToSlash(path), nil
}

// resolve confines path inside the root directory.
func (s *DiskStore) resolve(path string) (string, error) {
	clean := filepath.Join(s.root, filepath.FromSlash(path))
	if !strings.HasPrefix(clean, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("blob path %q escapes the store root", path)
	}
	return clean, nil
}
