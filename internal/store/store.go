package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	stateDirName     = ".stitch"
	snapshotsDirName = "snapshots"
	manifestsDirName = "manifests"
	blobsDirName     = "blobs"
)

// Store provides typed access to the workspace's snapshot store
// (snapshots, manifests, blobs). All content is addressed by 160-bit
// hex ids; snapshot metadata is JSON.
type Store struct {
	root         string
	snapshotsDir string
	manifestsDir string
	blobsDir     string
}

// OpenAt creates a Store rooted at the given workspace root directory.
func OpenAt(workspaceRoot string) *Store {
	base := filepath.Join(workspaceRoot, stateDirName)
	return &Store{
		root:         workspaceRoot,
		snapshotsDir: filepath.Join(base, snapshotsDirName),
		manifestsDir: filepath.Join(base, manifestsDirName),
		blobsDir:     filepath.Join(base, blobsDirName),
	}
}

// Root returns the workspace root directory.
func (s *Store) Root() string { return s.root }

// SnapshotsDir returns the path to the snapshots directory.
func (s *Store) SnapshotsDir() string { return s.snapshotsDir }

// ManifestsDir returns the path to the manifests directory.
func (s *Store) ManifestsDir() string { return s.manifestsDir }

// BlobsDir returns the path to the blobs directory.
func (s *Store) BlobsDir() string { return s.blobsDir }

// EnsureDirs creates the snapshots, manifests, and blobs directories if they
// don't exist.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.snapshotsDir, s.manifestsDir, s.blobsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
