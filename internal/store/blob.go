package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ankitiscracked/stitch/internal/node"
)

// ReadBlob reads a blob's content by its id.
func (s *Store) ReadBlob(id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("empty blob id")
	}
	path := filepath.Join(s.blobsDir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("blob not found: %w", err)
	}
	return data, nil
}

// WriteBlob writes content to the blob store under the given id.
// Skips writing if the blob already exists (content-addressed).
func (s *Store) WriteBlob(id string, content []byte) error {
	if id == "" {
		return fmt.Errorf("empty blob id")
	}
	path := filepath.Join(s.blobsDir, id)
	if _, err := os.Stat(path); err == nil {
		return nil // already exists
	}
	return os.WriteFile(path, content, 0644)
}

// PutBlob hashes content, stores it, and returns its id.
func (s *Store) PutBlob(content []byte) (string, error) {
	id := node.Hash(content)
	if err := s.WriteBlob(id, content); err != nil {
		return "", err
	}
	return id, nil
}

// BlobExists checks if a blob with the given id exists.
func (s *Store) BlobExists(id string) bool {
	path := filepath.Join(s.blobsDir, id)
	_, err := os.Stat(path)
	return err == nil
}

// BlobPath returns the filesystem path for a blob by its id.
func (s *Store) BlobPath(id string) string {
	return filepath.Join(s.blobsDir, id)
}
