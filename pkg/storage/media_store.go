// Package storage persists uploaded documents, rendered thumbnails and
// generated audio on disk, with optional archival to object storage.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrFileExists is returned when saving to a path that is already taken.
var ErrFileExists = errors.New("file already exists")

// MediaStore writes and reads media files under a root directory. Keys
// are relative paths and must not escape the root.
type MediaStore struct {
	root string
}

// NewMediaStore creates the root directory if needed.
func NewMediaStore(root string) (*MediaStore, error) {
	if root == "" {
		return nil, errors.New("media root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &MediaStore{root: root}, nil
}

// Root returns the store's base directory.
func (s *MediaStore) Root() string {
	return s.root
}

// Save writes a new file from r. An existing file at the key is an
// error, uploads never overwrite.
func (s *MediaStore) Save(key string, r io.Reader) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrFileExists, key)
		}
		return 0, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("write file: %w", err)
	}
	return n, nil
}

// SaveBytes writes a new file from a byte slice.
func (s *MediaStore) SaveBytes(key string, data []byte) error {
	_, err := s.Save(key, bytes.NewReader(data))
	return err
}

// Open returns a reader for the stored file.
func (s *MediaStore) Open(key string) (*os.File, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Path returns the absolute path for a key without touching the disk.
func (s *MediaStore) Path(key string) (string, error) {
	return s.resolve(key)
}

// Exists reports whether a file is stored at the key.
func (s *MediaStore) Exists(key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the stored file. Deleting a missing file is not an
// error.
func (s *MediaStore) Delete(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (s *MediaStore) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty media key")
	}
	path := filepath.Join(s.root, filepath.Clean("/"+key))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("media key escapes root: %q", key)
	}
	return path, nil
}
