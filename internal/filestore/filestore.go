// Package filestore persists uploaded image payloads on disk, addressed by
// content hash, and maps them to stable public URLs. Identical payloads
// deduplicate to one file.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// URLPrefix is the public path files are served under.
const URLPrefix = "/api/files/"

var storedFilePattern = regexp.MustCompile(`^[a-f0-9]{64}(\.[a-z0-9]{1,10})?$`)

// Store writes payloads under a single directory. Filenames are the sha256 of
// the content plus a sanitized extension, so a stored URL never goes stale.
type Store struct {
	dir string
}

// New creates the backing directory if needed. Home-relative paths expand.
func New(dir string) (*Store, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, fmt.Errorf("file store dir is required")
	}
	if strings.HasPrefix(trimmed, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~/"))
		}
	}
	trimmed = filepath.Clean(trimmed)
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("create file store dir: %w", err)
	}
	return &Store{dir: trimmed}, nil
}

// Dir returns the resolved storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// StoreBytes writes data and returns its public URL path. The extension comes
// from the original filename when usable, else from the media type. Writes go
// through a temp file and rename so a crash never leaves a partial payload
// behind a stable name.
func (s *Store) StoreBytes(name, mediaType string, data []byte) (string, error) {
	if s == nil {
		return "", fmt.Errorf("file store is nil")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("payload is empty")
	}

	hash := sha256.Sum256(data)
	id := hex.EncodeToString(hash[:])

	ext := sanitizeExt(filepath.Ext(strings.TrimSpace(name)))
	if ext == "" {
		ext = extFromMediaType(mediaType)
	}

	filename := id + ext
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err == nil {
		return URLPrefix + filename, nil
	} else if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("stat stored file: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filename+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	writeErr := func() error {
		if _, err := tmp.Write(data); err != nil {
			return err
		}
		return tmp.Close()
	}()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write file: %w", writeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		// If a concurrent writer won the race the content is identical anyway.
		if _, statErr := os.Stat(path); statErr == nil {
			return URLPrefix + filename, nil
		}
		return "", fmt.Errorf("finalize file: %w", err)
	}

	return URLPrefix + filename, nil
}

// Resolve validates a requested filename and returns its absolute path.
// Anything that is not a stored-file name, or that escapes the store
// directory, is rejected.
func (s *Store) Resolve(name string) (string, error) {
	cleaned := filepath.Base(strings.TrimSpace(name))
	if cleaned == "" || !storedFilePattern.MatchString(strings.ToLower(cleaned)) {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	path := filepath.Join(s.dir, cleaned)
	if rel, err := filepath.Rel(s.dir, path); err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stored file %s: %w", cleaned, err)
	}
	return path, nil
}

func sanitizeExt(ext string) string {
	trimmed := strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(trimmed, ".") {
		return ""
	}
	trimmed = strings.TrimPrefix(trimmed, ".")
	if trimmed == "" || len(trimmed) > 10 {
		return ""
	}
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			continue
		}
		return ""
	}
	return "." + trimmed
}

func extFromMediaType(mediaType string) string {
	mt := strings.TrimSpace(mediaType)
	if mt == "" {
		return ""
	}
	// Prefer the conventional extension for the common image types; the
	// platform mime table can order alternatives like .jpe first.
	switch mt {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	exts, err := mime.ExtensionsByType(mt)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return sanitizeExt(exts[0])
}
