package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// FSStore keeps one <hash>.bin file per cache entry under a directory.
type FSStore struct {
	dir string
}

// NewFSStore creates the cache directory if needed and returns the store.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.dir, key+".bin")
}

// Read returns the blob for key, or ErrNotFound.
func (s *FSStore) Read(key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return b, nil
}

// Write stores the blob for key, replacing any previous value.
func (s *FSStore) Write(key string, value []byte) error {
	if err := os.WriteFile(s.path(key), value, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Delete removes the blob for key. Deleting a missing key is a no-op.
func (s *FSStore) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Flush empties the cache directory.
func (s *FSStore) Flush() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to list cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to flush cache file %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Close is a no-op for the filesystem store.
func (s *FSStore) Close() error { return nil }
