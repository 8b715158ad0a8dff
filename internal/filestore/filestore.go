// Package filestore is the hybrid inline/disk byte store for ProjectFile
// content (spec §4.2). Valid UTF-8 content under Threshold bytes is
// returned as a string for inline storage in the Store; content at or
// above Threshold, and content that is not valid UTF-8, is written to an
// on-disk blob directory and referenced by location.
package filestore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Threshold is the inline/disk cutoff in bytes (spec §4.2: T = 1 MiB).
const Threshold = 1 << 20

// FileStore manages on-disk blobs under a root directory.
type FileStore struct {
	dir string
}

// New returns a FileStore rooted at dir, creating it if necessary.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// PutResult is the outcome of Put: exactly one of InlineText/Location is set.
type PutResult struct {
	InlineText *string
	Location   *string
	Hash       string
	Size       int64
}

// Put stores bytes, returning inline text for small content or writing a
// disk blob for content at or above Threshold.
func (fs *FileStore) Put(content []byte) (*PutResult, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	size := int64(len(content))

	// Inline storage is a TEXT column in the store; content that isn't
	// valid UTF-8 is written to disk instead, regardless of size.
	if size < Threshold && IsValidUTF8(content) {
		text := string(content)
		return &PutResult{InlineText: &text, Hash: hash, Size: size}, nil
	}

	name, err := randomHexName()
	if err != nil {
		return nil, err
	}
	location := filepath.Join(fs.dir, name)
	if err := os.WriteFile(location, content, 0o640); err != nil { //nolint:gosec // location is internally generated
		return nil, fmt.Errorf("writing blob: %w", err)
	}
	return &PutResult{Location: &location, Hash: hash, Size: size}, nil
}

func randomHexName() (string, error) {
	buf := make([]byte, 16) // 32 hex chars
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating blob name: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Get resolves content, preferring inlineText over a disk read at location.
func (fs *FileStore) Get(inlineText, location *string) ([]byte, error) {
	if inlineText != nil {
		return []byte(*inlineText), nil
	}
	if location == nil {
		return nil, errors.New("filestore: neither inline content nor location set")
	}
	return os.ReadFile(*location) //nolint:gosec // location is internally generated and validated at write time
}

// Delete removes the blob at location; a missing file is not an error
// (spec §4.2).
func (fs *FileStore) Delete(location string) error {
	if location == "" {
		return nil
	}
	err := os.Remove(location)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// ValidatePath enforces spec §4.2's rules: non-empty, no leading '/', no
// '..' segment before or after normalisation. Returns the cleaned relative
// path.
func ValidatePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("path cannot be empty")
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path %q must be relative", p)
	}
	if hasDotDotSegment(p) {
		return "", fmt.Errorf("path %q must not contain '..' segments", p)
	}

	cleaned := filepath.Clean(p)
	if strings.HasPrefix(cleaned, "/") || hasDotDotSegment(cleaned) {
		return "", fmt.Errorf("path %q escapes its root after normalisation", p)
	}
	return cleaned, nil
}

func hasDotDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

var mimeByExt = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".go":   "text/x-go",
	".js":   "text/javascript",
	".ts":   "text/typescript",
	".py":   "text/x-python",
	".html": "text/html",
	".css":  "text/css",
	".csv":  "text/csv",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// DetectMime looks up path's extension in a fixed table, defaulting to
// application/octet-stream.
func DetectMime(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := mimeByExt[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsValidUTF8 reports whether content is valid UTF-8 text, used to decide
// whether inline storage can store it as text content.
func IsValidUTF8(content []byte) bool {
	return utf8.Valid(content)
}
