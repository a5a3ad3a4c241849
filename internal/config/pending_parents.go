package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ankitiscracked/stitch/internal/store"
)

const pendingParentsFileName = "pending_parents.json"

type pendingParentsMeta struct {
	ParentSnapshotIDs []string `json:"parent_snapshot_ids"`
}

// ReadPendingParentsAt returns the parent snapshot ids the next snapshot in
// this workspace must record, left behind by an unfinished merge. Nil means
// no merge is pending.
func ReadPendingParentsAt(root string) ([]string, error) {
	path := filepath.Join(root, StateDirName, pendingParentsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var meta pendingParentsMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return normalizeParentIDs(meta.ParentSnapshotIDs), nil
}

// WritePendingParentsAt records the pending merge parents for a workspace
// root. An empty list clears the record.
func WritePendingParentsAt(root string, parents []string) error {
	parents = normalizeParentIDs(parents)
	if len(parents) == 0 {
		return ClearPendingParentsAt(root)
	}
	meta := pendingParentsMeta{ParentSnapshotIDs: parents}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(root, StateDirName, pendingParentsFileName)
	return store.AtomicWriteFile(path, data, 0644)
}

// ClearPendingParentsAt removes the pending merge parent record.
func ClearPendingParentsAt(root string) error {
	path := filepath.Join(root, StateDirName, pendingParentsFileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// normalizeParentIDs drops empty ids and duplicates, keeping order.
func normalizeParentIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
