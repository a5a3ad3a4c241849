package workspace

import (
	"fmt"
	"sort"
	"time"

	"github.com/ankitiscracked/stitch/internal/config"
	"github.com/ankitiscracked/stitch/internal/store"
)

// Snapshot commits the working copy: blobs, manifest, and metadata are
// written to the store, the new snapshot becomes the index's only parent,
// and a pending merge (if any) is concluded by recording both parents.
func (ws *Workspace) Snapshot(message string) (*store.SnapshotMeta, error) {
	lock, err := ws.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	ms, err := ws.mergeState()
	if err != nil {
		return nil, err
	}
	if len(ms.Unresolved()) > 0 {
		return nil, fmt.Errorf("%w: resolve them before snapshotting", ErrUnresolved)
	}

	if err := ws.store.EnsureDirs(); err != nil {
		return nil, err
	}

	wctx, err := ws.workingContext()
	if err != nil {
		return nil, err
	}
	man := wctx.Manifest()

	for _, f := range man.Paths() {
		id := man.Node(f)
		if ws.store.BlobExists(id) {
			continue
		}
		data, err := wctx.FileContent(f)
		if err != nil {
			return nil, err
		}
		if err := ws.store.WriteBlob(id, data); err != nil {
			return nil, err
		}
	}

	manifestHash, err := ws.store.WriteManifest(man)
	if err != nil {
		return nil, err
	}

	parents, err := ws.snapshotParents()
	if err != nil {
		return nil, err
	}
	copies := ws.idx.Copies()

	author, err := config.LoadAuthorAt(ws.root)
	if err != nil {
		author = &config.Author{}
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)
	id := store.ComputeSnapshotID(manifestHash, parents, author.Name, author.Email, message, createdAt)

	meta := &store.SnapshotMeta{
		ID:                id,
		ManifestHash:      manifestHash,
		ParentSnapshotIDs: parents,
		AuthorName:        author.Name,
		AuthorEmail:       author.Email,
		Message:           message,
		CreatedAt:         createdAt,
		Files:             man.Len(),
		Copies:            copies,
	}
	if err := ws.store.WriteSnapshotMeta(meta); err != nil {
		return nil, err
	}

	// the new snapshot is now the baseline: every tracked path is clean
	for _, f := range ws.idx.Paths() {
		if !man.Contains(f) {
			ws.idx.Drop(f)
		}
	}
	for _, f := range man.Paths() {
		ws.idx.SetTrackedNormal(f)
	}
	ws.idx.SetParents(id, "")
	if err := ws.idx.Save(); err != nil {
		return nil, err
	}

	if err := config.ClearPendingParentsAt(ws.root); err != nil {
		return nil, err
	}
	if err := ms.Reset("", ""); err != nil {
		return nil, err
	}
	return meta, nil
}

// snapshotParents returns the parent list for the next snapshot: the pending
// merge parents when a merge is being concluded, the index parents otherwise.
func (ws *Workspace) snapshotParents() ([]string, error) {
	pending, err := config.ReadPendingParentsAt(ws.root)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return pending, nil
	}
	var out []string
	for _, p := range ws.idx.Parents() {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// Log returns snapshot metadata newest first.
func (ws *Workspace) Log(limit int) ([]*store.SnapshotMeta, error) {
	ids, err := ws.store.ListSnapshotIDs()
	if err != nil {
		return nil, err
	}
	metas := make([]*store.SnapshotMeta, 0, len(ids))
	for _, id := range ids {
		m, err := ws.store.LoadSnapshotMeta(id)
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].CreatedAt != metas[j].CreatedAt {
			return metas[i].CreatedAt > metas[j].CreatedAt
		}
		return metas[i].ID > metas[j].ID
	})
	if limit > 0 && len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}
