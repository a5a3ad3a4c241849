package store

import (
	"os"
	"path/filepath"
	"testing"
)

func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s := OpenAt(root)
	if err := s.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return s, root
}

func TestOpenAt(t *testing.T) {
	root := t.TempDir()
	s := OpenAt(root)

	if s.Root() != root {
		t.Fatalf("expected root %s, got %s", root, s.Root())
	}
	if s.SnapshotsDir() != filepath.Join(root, ".stitch", "snapshots") {
		t.Fatalf("unexpected snapshots dir: %s", s.SnapshotsDir())
	}
	if s.ManifestsDir() != filepath.Join(root, ".stitch", "manifests") {
		t.Fatalf("unexpected manifests dir: %s", s.ManifestsDir())
	}
	if s.BlobsDir() != filepath.Join(root, ".stitch", "blobs") {
		t.Fatalf("unexpected blobs dir: %s", s.BlobsDir())
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	s := OpenAt(root)

	if err := s.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	for _, dir := range []string{s.SnapshotsDir(), s.ManifestsDir(), s.BlobsDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("dir %s missing: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", dir)
		}
	}
}
