package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a referenced photo does not exist.
var ErrNotFound = errors.New("storage: file not found")

// ErrOutsideRoot is returned by Key for references that are not relative to
// the store root.
var ErrOutsideRoot = errors.New("storage: reference is outside the store root")

// FileStore persists derived assets onto the local filesystem. From the
// pipeline's point of view it is append-only: every write creates a new,
// uniquely named file.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if !filepath.IsAbs(basePath) {
		if abs, err := filepath.Abs(basePath); err == nil {
			basePath = abs
		}
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Path resolves a storage key or an absolute path to a filesystem path.
// Relative references are confined to the store root.
func (s *FileStore) Path(ref string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	ref = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), "file://"))
	if ref == "" {
		return "", errors.New("storage: key is required")
	}
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref), nil
	}
	cleanKey, err := sanitizeKey(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// Key validates a caller supplied reference as a relative key under the store
// root. Absolute paths, file:// URLs and traversal are rejected, so untrusted
// input can only name files the store owns.
func (s *FileStore) Key(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "file:") || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "\\") || filepath.IsAbs(ref) {
		return "", ErrOutsideRoot
	}
	cleanKey, err := sanitizeKey(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOutsideRoot, err)
	}
	return cleanKey, nil
}

// Read loads the bytes of a photo referenced by key or absolute path.
func (s *FileStore) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	// O_EXCL keeps concurrent invocations from clobbering each other.
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	return cleanKey, nil
}

// WriteUnique writes data under dir using prefix, a unique qualifier and the
// extension matching mime. It returns the absolute path of the new file.
// An empty qualifier is replaced by a timestamped uuid.
func (s *FileStore) WriteUnique(ctx context.Context, dir, prefix, qualifier, mime string, data []byte) (string, error) {
	qualifier = strings.TrimSpace(qualifier)
	if qualifier == "" {
		qualifier = fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	}
	ext := ExtensionForMIME(mime)
	if ext == "" {
		ext = ".bin"
	}
	key := fmt.Sprintf("%s/%s-%s%s", strings.Trim(dir, "/"), prefix, qualifier, ext)
	savedKey, err := s.Write(ctx, key, data)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(savedKey)), nil
}

// ExtensionForMIME maps image content types to file extensions.
func ExtensionForMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// MIMEForPath guesses an image content type from a file extension.
func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return ""
	}
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
