package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// writeSnap stores a snapshot with a valid content-addressed id and returns
// the id.
func writeSnap(t *testing.T, s *Store, manifestHash string, parents []string, msg, created string) string {
	t.Helper()
	id := ComputeSnapshotID(manifestHash, parents, "Test", "test@example.com", msg, created)
	err := s.WriteSnapshotMeta(&SnapshotMeta{
		ID:                id,
		ManifestHash:      manifestHash,
		ParentSnapshotIDs: parents,
		AuthorName:        "Test",
		AuthorEmail:       "test@example.com",
		Message:           msg,
		CreatedAt:         created,
	})
	if err != nil {
		t.Fatalf("WriteSnapshotMeta: %v", err)
	}
	return id
}

func TestLoadWriteSnapshotMeta(t *testing.T) {
	s, _ := setupStore(t)

	id := writeSnap(t, s, "abc123", []string{"parentid"}, "first", "2024-01-01T00:00:00Z")

	loaded, err := s.LoadSnapshotMeta(id)
	if err != nil {
		t.Fatalf("LoadSnapshotMeta: %v", err)
	}
	if loaded.ID != id {
		t.Fatalf("ID mismatch: %s vs %s", loaded.ID, id)
	}
	if loaded.ManifestHash != "abc123" {
		t.Fatalf("ManifestHash mismatch: %s", loaded.ManifestHash)
	}
	if loaded.AuthorName != "Test" {
		t.Fatalf("AuthorName mismatch: %s", loaded.AuthorName)
	}
	if loaded.Message != "first" {
		t.Fatalf("Message mismatch: %s", loaded.Message)
	}
	if len(loaded.ParentSnapshotIDs) != 1 || loaded.ParentSnapshotIDs[0] != "parentid" {
		t.Fatalf("ParentSnapshotIDs mismatch: %v", loaded.ParentSnapshotIDs)
	}
}

func TestSnapshotMetaCopiesRoundTrip(t *testing.T) {
	s, _ := setupStore(t)

	id := ComputeSnapshotID("mh", nil, "T", "t@e", "renamed", "2024-01-01T00:00:00Z")
	err := s.WriteSnapshotMeta(&SnapshotMeta{
		ID:           id,
		ManifestHash: "mh",
		AuthorName:   "T",
		AuthorEmail:  "t@e",
		Message:      "renamed",
		CreatedAt:    "2024-01-01T00:00:00Z",
		Copies:       map[string]string{"new/name.go": "old/name.go"},
	})
	if err != nil {
		t.Fatalf("WriteSnapshotMeta: %v", err)
	}

	copies, err := s.SnapshotCopies(id)
	if err != nil {
		t.Fatalf("SnapshotCopies: %v", err)
	}
	if copies["new/name.go"] != "old/name.go" {
		t.Fatalf("copies mismatch: %v", copies)
	}
}

func TestLoadSnapshotMetaNotFound(t *testing.T) {
	s, _ := setupStore(t)

	if _, err := s.LoadSnapshotMeta("0000000000000000000000000000000000000000"); err == nil {
		t.Fatalf("expected error for missing snapshot")
	}
	if _, err := s.LoadSnapshotMeta(""); err == nil {
		t.Fatalf("expected error for empty ID")
	}
}

func TestSnapshotExists(t *testing.T) {
	s, _ := setupStore(t)

	if s.SnapshotExists("0000000000000000000000000000000000000000") {
		t.Fatalf("expected false for nonexistent snapshot")
	}

	id := writeSnap(t, s, "mh", nil, "", "2024-01-01T00:00:00Z")
	if !s.SnapshotExists(id) {
		t.Fatalf("expected true for existing snapshot")
	}
}

func TestResolveSnapshotID(t *testing.T) {
	s, _ := setupStore(t)

	id1 := writeSnap(t, s, "m1", nil, "a", "2024-01-01T00:00:00Z")
	id2 := writeSnap(t, s, "m2", nil, "b", "2024-01-02T00:00:00Z")

	got, err := s.ResolveSnapshotID(id1[:12])
	if err != nil {
		t.Fatalf("ResolveSnapshotID prefix: %v", err)
	}
	if got != id1 {
		t.Fatalf("expected %s, got %s", id1, got)
	}

	got, err = s.ResolveSnapshotID(id2)
	if err != nil {
		t.Fatalf("ResolveSnapshotID full: %v", err)
	}
	if got != id2 {
		t.Fatalf("expected %s, got %s", id2, got)
	}

	if _, err := s.ResolveSnapshotID("zzzz"); err == nil {
		t.Fatalf("expected not-found error")
	}
	if _, err := s.ResolveSnapshotID(""); err == nil {
		t.Fatalf("expected error for empty prefix")
	}
}

func TestListSnapshotIDs(t *testing.T) {
	s, _ := setupStore(t)

	ids, err := s.ListSnapshotIDs()
	if err != nil {
		t.Fatalf("ListSnapshotIDs empty: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty list, got %v", ids)
	}

	id1 := writeSnap(t, s, "m1", nil, "a", "2024-01-01T00:00:00Z")
	id2 := writeSnap(t, s, "m2", nil, "b", "2024-01-02T00:00:00Z")

	ids, err = s.ListSnapshotIDs()
	if err != nil {
		t.Fatalf("ListSnapshotIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
	found := map[string]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found[id1] || !found[id2] {
		t.Fatalf("missing ids in %v", ids)
	}
}

func TestManifestHashFromSnapshotID(t *testing.T) {
	s, _ := setupStore(t)

	id := writeSnap(t, s, "mhash-abc", nil, "", "2024-01-01T00:00:00Z")

	hash, err := s.ManifestHashFromSnapshotID(id)
	if err != nil {
		t.Fatalf("ManifestHashFromSnapshotID: %v", err)
	}
	if hash != "mhash-abc" {
		t.Fatalf("expected mhash-abc, got %s", hash)
	}
}

func TestManifestHashVerifiesIntegrity(t *testing.T) {
	s, _ := setupStore(t)

	id := writeSnap(t, s, "mhash", []string{"parentid"}, "msg", "2024-01-01T00:00:00Z")

	metaPath := filepath.Join(s.SnapshotsDir(), id+".meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal meta: %v", err)
	}
	raw["parent_snapshot_ids"] = []string{"tampered"}
	tampered, _ := json.MarshalIndent(raw, "", "  ")
	if err := os.WriteFile(metaPath, tampered, 0644); err != nil {
		t.Fatalf("write tampered meta: %v", err)
	}

	if _, err := s.ManifestHashFromSnapshotID(id); err == nil {
		t.Fatalf("expected integrity check failure after tampering")
	}
}

func TestSnapshotParentIDs(t *testing.T) {
	s, _ := setupStore(t)

	// Parent list with duplicates and an empty entry.
	id := writeSnap(t, s, "mh", []string{"aaaa", "bbbb", "aaaa", ""}, "", "2024-01-01T00:00:00Z")

	parents, err := s.SnapshotParentIDs(id)
	if err != nil {
		t.Fatalf("SnapshotParentIDs: %v", err)
	}
	if len(parents) != 2 {
		t.Fatalf("expected 2 unique parents, got %v", parents)
	}
	if parents[0] != "aaaa" || parents[1] != "bbbb" {
		t.Fatalf("unexpected parents: %v", parents)
	}
}

func TestSnapshotPrimaryParentID(t *testing.T) {
	s, _ := setupStore(t)

	merged := writeSnap(t, s, "mh", []string{"first", "second"}, "", "2024-01-01T00:00:00Z")
	primary, err := s.SnapshotPrimaryParentID(merged)
	if err != nil {
		t.Fatalf("SnapshotPrimaryParentID: %v", err)
	}
	if primary != "first" {
		t.Fatalf("expected first, got %s", primary)
	}

	root := writeSnap(t, s, "mh2", nil, "", "2024-01-01T00:00:00Z")
	primary, err = s.SnapshotPrimaryParentID(root)
	if err != nil {
		t.Fatalf("SnapshotPrimaryParentID (no parents): %v", err)
	}
	if primary != "" {
		t.Fatalf("expected empty for no parents, got %s", primary)
	}
}
