// Package storage manages uploaded evidence files: validation against the
// size and type limits, a local-disk store, and thumbnail path derivation.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// MaxFileSize is the default upload ceiling when the workspace config does
// not set one.
const MaxFileSize = 10 * 1024 * 1024

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"text/plain": {},
	"text/csv":   {},
}

// ValidateFile rejects uploads that exceed the size ceiling or fall outside
// the content type allow-list. A non-positive maxBytes falls back to
// MaxFileSize.
func ValidateFile(name string, size int64, contentType string, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = MaxFileSize
	}
	if size > maxBytes {
		return fmt.Errorf("file %s exceeds %s limit", name, humanize.IBytes(uint64(maxBytes)))
	}
	if _, ok := allowedTypes[contentType]; !ok {
		return fmt.Errorf("file type %s is not allowed", contentType)
	}
	return nil
}

// IsImage reports whether the content type is a thumbnailable image.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// EvidencePath builds the store path for an upload, namespaced by handover
// and check with a timestamp prefix to keep names unique.
func EvidencePath(handoverID, checkID int64, now time.Time, filename string) string {
	sanitized := unsafeChars.ReplaceAllString(filepath.Base(filename), "_")
	return fmt.Sprintf("%d/%d/%d_%s", handoverID, checkID, now.UnixMilli(), sanitized)
}

// ThumbnailPath derives the thumbnail location from an original file path.
func ThumbnailPath(filePath string) string {
	ext := path.Ext(filePath)
	return strings.TrimSuffix(filePath, ext) + "_thumb.jpg"
}

// FileInfo describes a stored file.
type FileInfo struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Store is the file storage collaborator.
type Store interface {
	Upload(ctx context.Context, storePath string, content []byte, contentType string) (FileInfo, error)
	Delete(ctx context.Context, storePath string) error
	URL(storePath string) string
}

// DiskStore keeps evidence files under a root directory in the workspace.
type DiskStore struct {
	Root    string
	BaseURL string
}

func NewDiskStore(root, baseURL string) *DiskStore {
	if baseURL == "" {
		baseURL = "/files"
	}
	return &DiskStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *DiskStore) localPath(storePath string) (string, error) {
	clean := path.Clean("/" + storePath)
	if clean == "/" {
		return "", fmt.Errorf("empty store path")
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}

func (s *DiskStore) Upload(ctx context.Context, storePath string, content []byte, contentType string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	local, err := s.localPath(storePath)
	if err != nil {
		return FileInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return FileInfo{}, err
	}
	if _, err := os.Stat(local); err == nil {
		return FileInfo{}, fmt.Errorf("file already exists at %s", storePath)
	}
	if err := os.WriteFile(local, content, 0o644); err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Path:        storePath,
		URL:         s.URL(storePath),
		Size:        int64(len(content)),
		ContentType: contentType,
	}, nil
}

func (s *DiskStore) Delete(ctx context.Context, storePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	local, err := s.localPath(storePath)
	if err != nil {
		return err
	}
	if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskStore) URL(storePath string) string {
	return s.BaseURL + "/" + strings.TrimLeft(storePath, "/")
}
