// Package storage holds the two persistence collaborators: a disk-backed
// blob store for uploaded files and a Redis-backed record store for analyses.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

// ErrNotFound is returned when a blob or analysis record does not exist.
var ErrNotFound = errors.New("not found")

// StoredFile describes one blob held by the store.
type StoredFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// BlobStore keeps uploaded files on disk under opaque IDs. The serving URL
// issued for a file is revoked by removing the file.
type BlobStore struct {
	dir     string
	urlBase string
}

// NewBlobStore creates the backing directory if needed. urlBase is the
// route prefix blobs are served under, e.g. "/v1/files".
func NewBlobStore(dir, urlBase string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob dir %s: %w", dir, err)
	}
	return &BlobStore{dir: dir, urlBase: strings.TrimRight(urlBase, "/")}, nil
}

// Put stores data under a fresh ID and returns its descriptor.
func (s *BlobStore) Put(name, contentType string, data []byte) (*StoredFile, error) {
	id := xid.New().String() + safeExt(name)
	path := filepath.Join(s.dir, id)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return nil, fmt.Errorf("writing blob: %w", err)
	}
	return &StoredFile{
		ID:          id,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		URL:         s.urlBase + "/" + id,
	}, nil
}

// Get reads a blob back by ID.
func (s *BlobStore) Get(id string) ([]byte, error) {
	path, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Exists reports whether a blob is still present.
func (s *BlobStore) Exists(id string) bool {
	path, err := s.resolve(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Remove deletes a blob, revoking its URL. Removing a missing blob is not
// an error.
func (s *BlobStore) Remove(id string) error {
	path, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Wipe deletes every stored blob.
func (s *BlobStore) Wipe() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// resolve validates an ID and maps it to a path inside the store directory.
func (s *BlobStore) resolve(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, id), nil
}

// safeExt keeps a short, lowercase alphanumeric extension and drops
// anything else.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
