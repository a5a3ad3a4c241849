package merge

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ankitiscracked/stitch/internal/copytrace"
	"github.com/ankitiscracked/stitch/internal/dirstate"
	"github.com/ankitiscracked/stitch/internal/manifest"
	"github.com/ankitiscracked/stitch/internal/node"
	"github.com/ankitiscracked/stitch/internal/tree"
)

// ErrUntrackedOverwrite means the target would overwrite an untracked
// working file whose content differs from what is incoming. Fatal unless
// the operation is forced; nothing has been written when it is raised.
var ErrUntrackedOverwrite = errors.New("untracked files would be overwritten")

// Opts control planning.
type Opts struct {
	// BranchMerge keeps both parents: a real merge rather than an update.
	BranchMerge bool
	// Force relaxes the untracked-file and divergence guards.
	Force bool
	// AcceptRemote settles would-be prompts in the target side's favor,
	// for non-interactive callers.
	AcceptRemote bool
	// Partial limits planning to paths it returns true for. Nil means all.
	Partial func(path string) bool
	// CaseFold enables the case-collision check over the resulting path
	// set, for case-insensitive filesystems.
	CaseFold bool
	Logger   *slog.Logger
}

func (o Opts) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// planOne classifies every path in the working and target manifests against
// one ancestor. idx supplies tracked/added knowledge about the working side
// and may be nil for snapshot-to-snapshot planning.
func planOne(wctx, tctx, actx *tree.Context, idx *dirstate.Dirstate, copies *copytrace.Result, opts Opts) (*Plan, error) {
	plan := NewPlan()
	if copies == nil {
		copies = &copytrace.Result{}
	}
	for src, dsts := range copies.Diverge {
		plan.Diverge[src] = dsts
	}
	for src, dsts := range copies.RenameDelete {
		plan.RenameDelete[src] = dsts
	}

	m1, m2, ma := wctx.Manifest(), tctx.Manifest(), actx.Manifest()
	log := opts.logger()

	// source paths consumed by a copy or a directory move on the opposite
	// side; their action is planned at the destination
	consumed := make(map[string]bool)
	for _, src := range copies.Copies {
		consumed[src] = true
	}
	for _, dst := range copies.MoveWithDir {
		consumed[dst] = true
	}

	var untracked []string
	for _, f := range unionPaths(m1, m2) {
		if opts.Partial != nil && !opts.Partial(f) {
			continue
		}
		e1, in1 := m1.Get(f)
		e2, in2 := m2.Get(f)

		switch {
		case in1 && in2:
			planBoth(plan, f, e1, e2, m2, ma, idx, copies, opts, &untracked)

		case in1:
			if consumed[f] {
				break // the other side's copy action covers this source
			}
			if dst, ok := copies.MoveWithDir[f]; ok {
				plan.set(Action{
					Path: dst, Kind: DirRenameMove, From: f, Flags: e1.Flags,
					Note: "remote directory rename - move from " + f,
				})
				break
			}
			if src, ok := copies.Copies[f]; ok {
				plan.set(Action{
					Path: f, Kind: Merge, Local: f, Other: src,
					Ancestor: src, AncestorNode: ancNode(ma, src),
					Note: "local copied/moved from " + src,
				})
				break
			}
			if !ma.Contains(f) {
				plan.set(Action{Path: f, Kind: Keep, Note: "local addition kept"})
				break
			}
			if e1.Node != ma.Node(f) {
				if opts.AcceptRemote {
					plan.set(Action{Path: f, Kind: Remove, Note: "other deleted"})
				} else {
					plan.set(Action{
						Path: f, Kind: ChangedDeleted,
						Local: f, Ancestor: f, AncestorNode: ma.Node(f),
						Note: "prompt changed/deleted",
					})
				}
			} else if idx != nil && idx.IsAdded(f) {
				plan.set(Action{Path: f, Kind: Forget, Note: "remote deleted"})
			} else {
				plan.set(Action{Path: f, Kind: Remove, Note: "other deleted"})
			}

		case in2:
			if consumed[f] {
				break
			}
			if dst, ok := copies.MoveWithDir[f]; ok {
				plan.set(Action{
					Path: dst, Kind: DirRenameGet, From: f, Flags: e2.Flags,
					Note: "local directory rename - get from " + f,
				})
				break
			}
			if src, ok := copies.Copies[f]; ok {
				move := !m2.Contains(src)
				note := "remote copied from " + src
				if move {
					note = "remote moved from " + src
				}
				plan.set(Action{
					Path: f, Kind: Merge, Local: src, Other: f,
					Ancestor: src, AncestorNode: ancNode(ma, src), Move: move,
					Note: note,
				})
				break
			}
			if !ma.Contains(f) {
				plan.set(Action{Path: f, Kind: Get, Flags: e2.Flags, Note: "remote created"})
				break
			}
			if e2.Node != ma.Node(f) || e2.Flags != ma.FlagsOf(f) {
				if opts.AcceptRemote {
					plan.set(Action{Path: f, Kind: Get, Flags: e2.Flags, Note: "remote recreating"})
				} else {
					plan.set(Action{
						Path: f, Kind: DeletedChanged, Flags: e2.Flags,
						Other: f, Ancestor: f, AncestorNode: ma.Node(f),
						Note: "prompt deleted/changed",
					})
				}
			}
			// target unchanged since the ancestor: stays deleted
		}
	}

	if len(untracked) > 0 {
		sort.Strings(untracked)
		for _, f := range untracked {
			log.Warn("untracked file differs", "path", f)
		}
		return nil, fmt.Errorf("%w: %s", ErrUntrackedOverwrite, strings.Join(untracked, ", "))
	}

	if opts.CaseFold {
		if err := checkPlanCase(plan, m1); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// planBoth classifies a path present on both sides.
func planBoth(plan *Plan, f string, e1, e2 manifest.FileEntry, m2, ma *manifest.Manifest, idx *dirstate.Dirstate, copies *copytrace.Result, opts Opts, untracked *[]string) {
	// both present but absent from the ancestor: either both-added, or both
	// renamed from the same source (then that source is the merge ancestor)
	fa := f
	if !ma.Contains(f) {
		if src, ok := copies.Copies[f]; ok {
			fa = src
		} else if idx != nil && !idx.IsTracked(f) {
			// the local file is untracked: adopting identical content is
			// safe, anything else would clobber it
			different := e1.Node != e2.Node || e1.Flags != e2.Flags
			switch {
			case !different:
				plan.set(Action{Path: f, Kind: Get, Flags: e2.Flags, Note: "remote created"})
			case !opts.Force:
				*untracked = append(*untracked, f)
			case opts.BranchMerge:
				plan.set(Action{
					Path: f, Kind: Merge, Local: f, Other: f,
					Ancestor: f, AncestorNode: node.Zero,
					Note: "remote differs from untracked local",
				})
			default:
				plan.set(Action{Path: f, Kind: Get, Flags: e2.Flags, Note: "remote created"})
			}
			return
		}
	}

	if e1.Node == e2.Node && e1.Flags == e2.Flags {
		plan.set(Action{Path: f, Kind: Keep, Note: "unchanged"})
		return
	}

	an := ancNode(ma, fa)
	fla := ma.FlagsOf(fa)
	noLinks := !strings.Contains(string(e1.Flags)+string(e2.Flags)+string(fla), "l")

	switch {
	case e2.Node == an && e2.Flags == fla:
		plan.set(Action{Path: f, Kind: Keep, Note: "remote unchanged"})
	case e1.Node == an && e1.Flags == fla: // local unchanged, use remote
		if e1.Node == e2.Node {
			plan.set(Action{Path: f, Kind: ExecChange, Flags: e2.Flags, Note: "update permissions"})
		} else {
			plan.set(Action{Path: f, Kind: Get, Flags: e2.Flags, Note: "remote is newer"})
		}
	case noLinks && e2.Node == an: // remote only changed flags
		plan.set(Action{Path: f, Kind: ExecChange, Flags: e2.Flags, Note: "update permissions"})
	case noLinks && e1.Node == an: // local only changed flags
		plan.set(Action{Path: f, Kind: Get, Flags: e1.Flags, Note: "remote is newer"})
	default:
		plan.set(Action{
			Path: f, Kind: Merge, Local: f, Other: f,
			Ancestor: fa, AncestorNode: an,
			Note: "versions differ",
		})
	}
}

// ancNode returns the ancestor content id for a path, or the null id when
// the ancestor has no version of it.
func ancNode(ma *manifest.Manifest, path string) string {
	if n := ma.Node(path); n != "" {
		return n
	}
	return node.Zero
}

// forgetRemoved plans index cleanup for paths the target lacks: files
// deleted from disk but still tracked, and files already marked removed.
// During a branch merge deletions stay visible as removed entries; a plain
// update drops them outright.
func forgetRemoved(plan *Plan, wman, tman *manifest.Manifest, idx *dirstate.Dirstate, opts Opts) {
	if idx == nil {
		return
	}
	deletedKind := Forget
	if opts.BranchMerge {
		deletedKind = Remove
	}
	for _, f := range idx.Paths() {
		if opts.Partial != nil && !opts.Partial(f) {
			continue
		}
		if tman.Contains(f) {
			continue
		}
		if _, planned := plan.Actions[f]; planned {
			continue
		}
		e, _ := idx.Get(f)
		if e.State != dirstate.Removed && !wman.Contains(f) {
			plan.set(Action{Path: f, Kind: deletedKind, Note: "forget deleted"})
		} else if e.State == dirstate.Removed && !opts.BranchMerge {
			plan.set(Action{Path: f, Kind: Forget, Note: "forget removed"})
		}
	}
}

// checkPlanCase verifies the path set the plan produces has no case-folding
// collisions: the working manifest adjusted by removals and additions.
func checkPlanCase(plan *Plan, wman *manifest.Manifest) error {
	final := make(map[string]bool, wman.Len())
	for _, f := range wman.Paths() {
		final[f] = true
	}
	for f, a := range plan.Actions {
		switch a.Kind {
		case Remove, Forget:
			delete(final, f)
		case DirRenameMove:
			delete(final, a.From)
			final[f] = true
		default:
			final[f] = true
		}
	}
	paths := make([]string, 0, len(final))
	for f := range final {
		paths = append(paths, f)
	}
	sort.Strings(paths)
	return manifest.CheckCaseCollisions(paths)
}

// unionPaths returns the sorted union of two manifests' paths.
func unionPaths(a, b *manifest.Manifest) []string {
	seen := make(map[string]bool, a.Len()+b.Len())
	out := make([]string, 0, a.Len()+b.Len())
	for _, f := range a.Paths() {
		seen[f] = true
		out = append(out, f)
	}
	for _, f := range b.Paths() {
		if !seen[f] {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
