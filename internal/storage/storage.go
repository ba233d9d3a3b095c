package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a ref does not exist in the store.
var ErrNotFound = errors.New("object not found")

// ObjectStore provides file-backed storage for photos and generated images,
// addressed by slash-separated refs.
type ObjectStore struct {
	basePath string
}

// NewObjectStore creates a new ObjectStore and ensures the base directory exists.
func NewObjectStore(basePath string) (*ObjectStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &ObjectStore{basePath: basePath}, nil
}

func (s *ObjectStore) pathFor(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object ref %q", ref)
	}
	return filepath.Join(s.basePath, clean), nil
}

// Put stores the bytes under ref, creating parent directories as needed.
func (s *ObjectStore) Put(ref string, data []byte) error {
	path, err := s.pathFor(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write object %s: %w", ref, err)
	}
	return nil
}

// Get retrieves the bytes stored under ref.
func (s *ObjectStore) Get(ref string) ([]byte, error) {
	path, err := s.pathFor(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", ref, err)
	}
	return data, nil
}

// Exists checks whether an object is stored under ref.
func (s *ObjectStore) Exists(ref string) bool {
	path, err := s.pathFor(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return !os.IsNotExist(err)
}
