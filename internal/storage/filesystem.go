package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Fetcher resolves an image reference (data URL or remote URL) to bytes.
type Fetcher interface {
	FetchImage(ctx context.Context, ref string) ([]byte, string, error)
}

// FileStore writes studio artifacts (merged canvases, final images, gallery
// exports) under a local directory.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Path returns the absolute location of a key previously returned by Write.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Write stores data at the relative key and returns the cleaned key. Keys
// cannot escape the base path. The file is written to a temporary sibling and
// renamed into place, so readers never see a partial image.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	dest := s.Path(clean)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("storage: rename into place: %w", err)
	}
	return clean, nil
}

// WriteArtifact resolves ref through f and writes the image at key. When key
// has no extension one is derived from the image's media type.
func (s *FileStore) WriteArtifact(ctx context.Context, f Fetcher, key, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", errors.New("storage: empty image reference")
	}
	data, mediaType, err := f.FetchImage(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("storage: fetch image: %w", err)
	}
	if path.Ext(key) == "" {
		key += ExtensionFor(mediaType)
	}
	return s.Write(ctx, key, data)
}

// ExtensionFor maps an image media type to a file extension, ".png" when unknown.
func ExtensionFor(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png", "":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}

// sanitizeKey turns key into a slash-separated path relative to the store
// root, rejecting anything that would resolve outside it.
func sanitizeKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	if rel := path.Clean(key); rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.New("storage: invalid key")
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
