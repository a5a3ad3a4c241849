package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ankitiscracked/stitch/internal/manifest"
)

// SnapshotMeta represents snapshot metadata. This is the canonical type —
// all packages should use store.SnapshotMeta instead of defining their own.
type SnapshotMeta struct {
	ID                string   `json:"id"`
	ManifestHash      string   `json:"manifest_hash"`
	ParentSnapshotIDs []string `json:"parent_snapshot_ids"`
	AuthorName        string   `json:"author_name,omitempty"`
	AuthorEmail       string   `json:"author_email,omitempty"`
	Message           string   `json:"message,omitempty"`
	CreatedAt         string   `json:"created_at"`
	Files             int      `json:"files,omitempty"`
	// Copies records rename/copy provenance for paths introduced by this
	// snapshot: destination path → source path in the first parent. Copy
	// tracing walks these edges when reconstructing file lineages.
	Copies map[string]string `json:"copies,omitempty"`
}

// LoadSnapshotMeta reads snapshot metadata by ID from the store.
func (s *Store) LoadSnapshotMeta(id string) (*SnapshotMeta, error) {
	if id == "" {
		return nil, fmt.Errorf("empty snapshot ID")
	}

	metaPath := filepath.Join(s.snapshotsDir, id+".meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot metadata not found: %w", err)
	}

	var meta SnapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot metadata: %w", err)
	}
	return &meta, nil
}

// WriteSnapshotMeta writes snapshot metadata to the store.
func (s *Store) WriteSnapshotMeta(meta *SnapshotMeta) error {
	if meta == nil || meta.ID == "" {
		return fmt.Errorf("snapshot metadata missing ID")
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}

	metaPath := filepath.Join(s.snapshotsDir, meta.ID+".meta.json")
	return AtomicWriteFile(metaPath, data, 0644)
}

// SnapshotExists checks if a snapshot with the given ID exists.
func (s *Store) SnapshotExists(id string) bool {
	metaPath := filepath.Join(s.snapshotsDir, id+".meta.json")
	_, err := os.Stat(metaPath)
	return err == nil
}

// ResolveSnapshotID resolves a snapshot prefix to a full ID.
func (s *Store) ResolveSnapshotID(prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("empty snapshot ID")
	}

	entries, err := os.ReadDir(s.snapshotsDir)
	if err != nil {
		return "", err
	}

	matches := make([]string, 0, 4)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		id := strings.TrimSuffix(name, ".meta.json")
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("snapshot %q not found", prefix)
	}
	sort.Strings(matches)
	return "", fmt.Errorf("snapshot %q is ambiguous: %s", prefix, strings.Join(matches, ", "))
}

// ListSnapshotIDs returns every snapshot id in the store, sorted.
func (s *Store) ListSnapshotIDs() ([]string, error) {
	entries, err := os.ReadDir(s.snapshotsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".meta.json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// ManifestHashFromSnapshotID resolves a snapshot ID to its manifest hash,
// verifying the content-addressed id along the way.
func (s *Store) ManifestHashFromSnapshotID(snapshotID string) (string, error) {
	if snapshotID == "" {
		return "", fmt.Errorf("empty snapshot ID")
	}

	meta, err := s.LoadSnapshotMeta(snapshotID)
	if err != nil {
		return "", err
	}
	if meta.ManifestHash == "" {
		return "", fmt.Errorf("snapshot metadata missing manifest hash for: %s", snapshotID)
	}
	if !VerifySnapshotID(snapshotID, meta) {
		return "", fmt.Errorf("snapshot integrity check failed for %s: ID does not match content", snapshotID)
	}
	return meta.ManifestHash, nil
}

// ManifestForSnapshot loads the manifest a snapshot points at.
func (s *Store) ManifestForSnapshot(snapshotID string) (*manifest.Manifest, error) {
	hash, err := s.ManifestHashFromSnapshotID(snapshotID)
	if err != nil {
		return nil, err
	}
	return s.LoadManifest(hash)
}

// SnapshotParentIDs returns all parent snapshot IDs for a snapshot.
func (s *Store) SnapshotParentIDs(snapshotID string) ([]string, error) {
	if snapshotID == "" {
		return nil, fmt.Errorf("empty snapshot ID")
	}

	meta, err := s.LoadSnapshotMeta(snapshotID)
	if err != nil {
		return nil, err
	}
	return normalizeParentIDs(meta.ParentSnapshotIDs), nil
}

// SnapshotPrimaryParentID returns the first parent snapshot ID.
func (s *Store) SnapshotPrimaryParentID(snapshotID string) (string, error) {
	parents, err := s.SnapshotParentIDs(snapshotID)
	if err != nil {
		return "", err
	}
	if len(parents) == 0 {
		return "", nil
	}
	return parents[0], nil
}

func normalizeParentIDs(parents []string) []string {
	seen := make(map[string]struct{}, len(parents)+1)
	out := make([]string, 0, len(parents)+1)

	for _, p := range parents {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	return out
}
