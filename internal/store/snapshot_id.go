package store

import (
	"sort"
	"strings"

	"github.com/ankitiscracked/stitch/internal/node"
)

// ComputeSnapshotID derives a content-addressed snapshot ID from the
// snapshot's identity fields. The result is deterministic: same inputs always
// produce the same ID. Format: 40-char lowercase hex, like every other
// content id in the store.
func ComputeSnapshotID(manifestHash string, parentSnapshotIDs []string, authorName, authorEmail, message, createdAt string) string {
	sorted := make([]string, len(parentSnapshotIDs))
	copy(sorted, parentSnapshotIDs)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("snapshot\x00")
	b.WriteString("manifest_hash " + manifestHash + "\n")
	for _, p := range sorted {
		b.WriteString("parent " + p + "\n")
	}
	b.WriteString("author " + authorName + " " + authorEmail + "\n")
	b.WriteString("created_at " + createdAt + "\n")
	b.WriteString("message " + message + "\n")

	return node.Hash([]byte(b.String()))
}

// VerifySnapshotID checks whether a snapshot ID matches the content-addressed
// hash of its identity fields.
func VerifySnapshotID(id string, meta *SnapshotMeta) bool {
	if !node.IsValid(id) {
		return false
	}
	expected := ComputeSnapshotID(meta.ManifestHash, meta.ParentSnapshotIDs,
		meta.AuthorName, meta.AuthorEmail, meta.Message, meta.CreatedAt)
	return id == expected
}
