package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ankitiscracked/stitch/internal/config"
	"github.com/ankitiscracked/stitch/internal/copytrace"
	"github.com/ankitiscracked/stitch/internal/dag"
	"github.com/ankitiscracked/stitch/internal/filemerge"
	"github.com/ankitiscracked/stitch/internal/merge"
	"github.com/ankitiscracked/stitch/internal/tree"
)

const markerFileName = "updatestate"

// lineage cache entries kept per copy trace
const traceCacheSize = 4096

// UpdateOpts control Update and Merge.
type UpdateOpts struct {
	// Force relaxes the untracked-file guard and, for plain updates,
	// discards local changes in favor of the target.
	Force bool
	// AcceptRemote settles change/delete conflicts in the target's favor.
	AcceptRemote bool
	// Policy decides change/delete conflicts; nil defers them to the
	// conflict state store.
	Policy merge.ConflictPolicy
	// Ancestor overrides common-ancestor discovery with an explicit
	// snapshot (prefix accepted).
	Ancestor string
	// Partial limits the operation to paths the predicate selects. Nil
	// means the whole tree. Unselected paths keep their working state.
	Partial func(path string) bool
}

// UpdateResult reports what an update or merge did.
type UpdateResult struct {
	Target string
	Stats  merge.Stats
}

// marker is the crash-detection record written for the duration of a
// working-copy mutation.
type marker struct {
	OpID      string `json:"op_id"`
	Op        string `json:"op"`
	Target    string `json:"target"`
	StartedAt string `json:"started_at"`
}

// Update moves the working copy to the given snapshot, merging uncommitted
// local changes into the new parent. The index ends with the target as its
// only parent.
func (ws *Workspace) Update(rev string, opts UpdateOpts) (*UpdateResult, error) {
	return ws.run("update", rev, false, opts)
}

// Merge merges the given snapshot into the working copy. The index ends with
// both parents recorded; the next snapshot becomes the merge commit.
func (ws *Workspace) Merge(rev string, opts UpdateOpts) (*UpdateResult, error) {
	return ws.run("merge", rev, true, opts)
}

func (ws *Workspace) run(op, rev string, branchMerge bool, opts UpdateOpts) (*UpdateResult, error) {
	lock, err := ws.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if m, err := ws.readMarker(); err != nil {
		return nil, err
	} else if m != nil {
		return nil, fmt.Errorf("a previous %s was interrupted; run 'stitch abort' first", m.Op)
	}

	target, err := ws.store.ResolveSnapshotID(rev)
	if err != nil {
		return nil, err
	}

	ms, err := ws.mergeState()
	if err != nil {
		return nil, err
	}
	if len(ms.Unresolved()) > 0 {
		return nil, fmt.Errorf("%w: resolve or abort before running %s", ErrUnresolved, op)
	}

	p1 := ws.idx.P1()
	if branchMerge {
		if ws.idx.InMerge() {
			return nil, errors.New("outstanding uncommitted merge; snapshot or abort it first")
		}
		if p1 == "" {
			return nil, errors.New("nothing to merge with: no snapshot yet")
		}
		if target == p1 {
			return nil, errors.New("merging with the working copy parent has no effect")
		}
		if ws.store.IsAncestorOf(target, p1) {
			return nil, fmt.Errorf("%s is an ancestor of the working copy parent; merging has no effect", target)
		}
		if !opts.Force {
			st, err := ws.Status()
			if err != nil {
				return nil, err
			}
			if st.HasChanges() {
				return nil, errors.New("uncommitted changes; snapshot them or use --force")
			}
		}
	} else if ws.idx.InMerge() {
		return nil, errors.New("outstanding uncommitted merge; snapshot or abort it first")
	}

	wctx, err := ws.workingContext()
	if err != nil {
		return nil, err
	}
	tctx, err := tree.Snapshot(ws.store, target)
	if err != nil {
		return nil, err
	}

	ancestors, overwrite, err := ws.pickAncestors(wctx, p1, target, branchMerge, opts)
	if err != nil {
		return nil, err
	}

	var copies *copytrace.Result
	if ws.settings.CopiesEnabled() && !overwrite && len(ancestors) == 1 && ancestors[0].ID() != "" {
		copies, err = ws.traceCopies(wctx, tctx, ancestors[0])
		if err != nil {
			return nil, err
		}
	}

	plan, err := merge.Calculate(wctx, tctx, ancestors, ws.idx, copies, merge.Opts{
		BranchMerge:  branchMerge,
		Force:        opts.Force,
		AcceptRemote: opts.AcceptRemote,
		Partial:      opts.Partial,
		CaseFold:     ws.caseFold(),
		Logger:       ws.logger,
	})
	if err != nil {
		return nil, err
	}

	for _, src := range sortedPlanKeys(plan.Diverge) {
		ws.logger.Warn("file was renamed in different directions on each side",
			"path", src, "destinations", plan.Diverge[src])
	}
	for _, src := range sortedPlanKeys(plan.RenameDelete) {
		ws.logger.Warn("file was renamed on one side and deleted on the other",
			"path", src, "kept", plan.RenameDelete[src])
	}

	merge.SettlePrompts(plan, opts.Policy)

	if err := ws.writeMarker(op, target); err != nil {
		return nil, err
	}

	ws.idx.BeginParentChange()
	stats, err := merge.Apply(plan, wctx, tctx, ws.store, ms, merge.ApplyOpts{
		Workers: ws.settings.Workers,
		Merger:  ws.merger(),
		Labels:  ws.labels(target, branchMerge),
		Logger:  ws.logger,
	})
	if err != nil {
		ws.idx.RollbackParentChange()
		return nil, err
	}

	merge.RecordUpdates(plan, branchMerge, ws.idx)
	if branchMerge {
		ws.idx.SetParents(p1, target)
		if err := config.WritePendingParentsAt(ws.root, []string{p1, target}); err != nil {
			ws.idx.RollbackParentChange()
			return nil, err
		}
	} else {
		ws.idx.SetParents(target, "")
	}
	if err := ws.idx.EndParentChange(); err != nil {
		ws.idx.RollbackParentChange()
		return nil, err
	}

	if err := ws.clearMarker(); err != nil {
		return nil, err
	}
	return &UpdateResult{Target: target, Stats: stats}, nil
}

// pickAncestors decides the ancestor set for planning. Forced plain updates
// use the working copy itself, which makes the target win everywhere.
func (ws *Workspace) pickAncestors(wctx *tree.Context, p1, target string, branchMerge bool, opts UpdateOpts) ([]*tree.Context, bool, error) {
	if opts.Force && !branchMerge {
		return []*tree.Context{wctx}, true, nil
	}
	if opts.Ancestor != "" {
		id, err := ws.store.ResolveSnapshotID(opts.Ancestor)
		if err != nil {
			return nil, false, err
		}
		actx, err := tree.Snapshot(ws.store, id)
		if err != nil {
			return nil, false, err
		}
		return []*tree.Context{actx}, false, nil
	}
	if p1 == "" {
		return []*tree.Context{tree.Empty(ws.store)}, false, nil
	}

	heads, err := ws.store.CommonAncestorHeads(p1, target)
	if err != nil {
		return nil, false, err
	}
	if len(heads) == 0 {
		if branchMerge {
			return nil, false, fmt.Errorf("no common ancestor of %s and %s", p1, target)
		}
		return []*tree.Context{tree.Empty(ws.store)}, false, nil
	}
	if len(heads) > 1 {
		ws.logger.Info("criss-cross merge detected", "ancestors", heads)
	}
	if !branchMerge && len(heads) == 1 && heads[0] == target {
		// backward update: with the target as ancestor every file would look
		// locally changed and survive, so the working parent plays ancestor
		// and the target's versions win
		actx, err := tree.Snapshot(ws.store, p1)
		if err != nil {
			return nil, false, err
		}
		return []*tree.Context{actx}, false, nil
	}
	ctxs := make([]*tree.Context, 0, len(heads))
	for _, h := range heads {
		actx, err := tree.Snapshot(ws.store, h)
		if err != nil {
			return nil, false, err
		}
		ctxs = append(ctxs, actx)
	}
	return ctxs, false, nil
}

// traceCopies runs rename detection for a single-ancestor plan. An unbounded
// trace (ambiguous ancestry) degrades to no copy information with a warning.
func (ws *Workspace) traceCopies(wctx, tctx, actx *tree.Context) (*copytrace.Result, error) {
	graph := tree.NewGraph(ws.store, ws.idx.Parents())
	tracer, err := copytrace.New(ws.store, dag.NewRevs(graph), traceCacheSize, ws.logger)
	if err != nil {
		return nil, err
	}
	res, err := tracer.Trace(wctx, tctx, actx)
	if err != nil {
		if errors.Is(err, copytrace.ErrAmbiguousAncestor) {
			ws.logger.Warn("skipping rename detection", "reason", err)
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

func (ws *Workspace) labels(target string, branchMerge bool) filemerge.Labels {
	l := filemerge.DefaultLabels()
	if branchMerge {
		l.Local = "working copy"
	}
	if len(target) >= 12 {
		l.Other = "snapshot " + target[:12]
	}
	return l
}

func (ws *Workspace) markerPath() string {
	return filepath.Join(config.StateDir(ws.root), markerFileName)
}

func (ws *Workspace) writeMarker(op, target string) error {
	m := marker{
		OpID:      uuid.NewString(),
		Op:        op,
		Target:    target,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(ws.markerPath(), data, 0644)
}

func (ws *Workspace) readMarker() (*marker, error) {
	data, err := os.ReadFile(ws.markerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupt operation marker: %w", err)
	}
	return &m, nil
}

func (ws *Workspace) clearMarker() error {
	if err := os.Remove(ws.markerPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func sortedPlanKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
