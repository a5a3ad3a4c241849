package store

import (
	"fmt"

	"github.com/ankitiscracked/stitch/internal/dag"
)

// Parents returns a snapshot's parent ids. Implements dag.Graph, so a Store
// can back the generation cache directly.
func (s *Store) Parents(id string) ([]string, error) {
	return s.SnapshotParentIDs(id)
}

// FileContent returns the content of a file version. Content is addressed by
// id alone; the path only improves error messages.
func (s *Store) FileContent(path, contentID string) ([]byte, error) {
	data, err := s.ReadBlob(contentID)
	if err != nil {
		return nil, fmt.Errorf("content for %s: %w", path, err)
	}
	return data, nil
}

// SnapshotCopies returns the rename/copy provenance recorded by a snapshot.
func (s *Store) SnapshotCopies(id string) (map[string]string, error) {
	meta, err := s.LoadSnapshotMeta(id)
	if err != nil {
		return nil, err
	}
	return meta.Copies, nil
}

// Ancestor returns the best single common ancestor of two snapshots.
func (s *Store) Ancestor(a, b string) (string, error) {
	return dag.Ancestor(dag.NewRevs(s), a, b)
}

// CommonAncestorHeads returns every maximal common ancestor of two snapshots.
func (s *Store) CommonAncestorHeads(a, b string) ([]string, error) {
	return dag.CommonAncestorHeads(dag.NewRevs(s), a, b)
}

// IsAncestorOf returns true if ancestor is reachable by walking parent links
// from start. Lookup failures read as "not an ancestor".
func (s *Store) IsAncestorOf(ancestor, start string) bool {
	if ancestor == "" || start == "" {
		return false
	}
	ok, err := dag.IsAncestor(dag.NewRevs(s), ancestor, start)
	return err == nil && ok
}
