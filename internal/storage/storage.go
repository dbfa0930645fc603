package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage persists uploaded documents (cover notes, policy schedules, CNIC
// scans). Paths are storage-relative keys, never absolute filesystem paths.
type Storage interface {
	// Save writes the content under the key and returns the stored key.
	Save(key string, r io.Reader) (string, error)
	Open(key string) (io.ReadCloser, error)
	Remove(key string) error
}

// localStorage keeps files under a base directory on disk.
type localStorage struct {
	baseDir string
}

// NewLocal returns disk-backed storage rooted at baseDir, creating it if
// needed.
func NewLocal(baseDir string) (Storage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", baseDir, err)
	}
	return &localStorage{baseDir: baseDir}, nil
}

func (s *localStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key) // force-root then strip, defeating ../ escapes
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *localStorage) Save(key string, r io.Reader) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage subdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", key, err)
	}
	return key, nil
}

func (s *localStorage) Open(key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *localStorage) Remove(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file %s: %w", key, err)
	}
	return nil
}
