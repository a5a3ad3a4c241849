package merge

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ankitiscracked/stitch/internal/filemerge"
	"github.com/ankitiscracked/stitch/internal/mergestate"
	"github.com/ankitiscracked/stitch/internal/node"
	"github.com/ankitiscracked/stitch/internal/tree"
)

// Stats summarizes what applying a plan did.
type Stats struct {
	Updated    int
	Merged     int
	Removed    int
	Unresolved int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d files updated, %d files merged, %d files removed, %d files unresolved",
		s.Updated, s.Merged, s.Removed, s.Unresolved)
}

// ApplyOpts control plan application.
type ApplyOpts struct {
	// Workers bounds the remove and write parallelism. Zero means one per
	// CPU.
	Workers int
	// Merger handles conflicted file merges. Nil means the built-in merge,
	// leaving conflict markers in the file.
	Merger filemerge.Merger
	Labels filemerge.Labels
	Logger *slog.Logger
}

// Apply executes a plan against the working copy. Local content of every
// to-be-merged file is stashed in the conflict state store before anything
// is written, so a crash or an abort can restore the pre-merge state.
// Removes run before writes so a path can change case in one pass; both
// phases are parallel, file merges are sequential.
func Apply(plan *Plan, wctx, tctx *tree.Context, hist tree.History, ms *mergestate.Store, opts ApplyOpts) (Stats, error) {
	var stats Stats
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	merger := opts.Merger
	if merger == nil {
		merger = filemerge.Internal{}
	}
	root := wctx.Root()
	m1, m2 := wctx.Manifest(), tctx.Manifest()

	if err := ms.Reset(wctx.PrimaryParent(), tctx.ID()); err != nil {
		return stats, err
	}

	// stash every conflicted file's local side before touching the tree
	var merges, moveSources []string
	for _, f := range plan.Paths() {
		a := plan.Actions[f]
		switch a.Kind {
		case Merge:
			var content []byte
			local := mergestate.FileVersion{Path: a.Local, Node: node.Zero}
			if e, ok := m1.Get(a.Local); ok {
				data, err := wctx.FileContent(a.Local)
				if err != nil {
					return stats, err
				}
				content, local = data, mergestate.FileVersion{Path: a.Local, Node: e.Node, Flags: e.Flags}
			}
			other := mergestate.FileVersion{Path: a.Other, Node: m2.Node(a.Other), Flags: m2.FlagsOf(a.Other)}
			anc := mergestate.FileVersion{Path: a.Ancestor, Node: a.AncestorNode}
			if err := ms.Add(local, content, anc, other, f); err != nil {
				return stats, err
			}
			merges = append(merges, f)
			if a.Move && a.Local != f {
				moveSources = append(moveSources, a.Local)
			}
		case ChangedDeleted:
			e, _ := m1.Get(f)
			content, err := wctx.FileContent(f)
			if err != nil {
				return stats, err
			}
			local := mergestate.FileVersion{Path: f, Node: e.Node, Flags: e.Flags}
			anc := mergestate.FileVersion{Path: a.Ancestor, Node: a.AncestorNode}
			if err := ms.Add(local, content, anc, mergestate.FileVersion{Path: f, Node: node.Zero}, f); err != nil {
				return stats, err
			}
			log.Warn("conflict: changed locally, deleted remotely", "path", f)
			stats.Unresolved++
		case DeletedChanged:
			// no local version exists; the empty path marks that for abort
			local := mergestate.FileVersion{Path: "", Node: node.Zero}
			anc := mergestate.FileVersion{Path: a.Ancestor, Node: a.AncestorNode}
			other := mergestate.FileVersion{Path: f, Node: m2.Node(f), Flags: a.Flags}
			if err := ms.Add(local, nil, anc, other, f); err != nil {
				return stats, err
			}
			log.Warn("conflict: deleted locally, changed remotely", "path", f)
			stats.Unresolved++
		}
	}

	// sources of cross-directory moves leave no action of their own
	for _, f := range moveSources {
		log.Debug("removing move source", "path", f)
		if err := tree.RemoveFile(root, f); err != nil {
			return stats, err
		}
	}

	byKind := plan.ByKind()

	var rg errgroup.Group
	rg.SetLimit(workers)
	for _, a := range byKind[Remove] {
		a := a
		rg.Go(func() error {
			log.Debug("removing", "path", a.Path)
			return tree.RemoveFile(root, a.Path)
		})
	}
	if err := rg.Wait(); err != nil {
		return stats, err
	}
	stats.Removed += len(byKind[Remove])

	var wg errgroup.Group
	wg.SetLimit(workers)
	for _, a := range byKind[Get] {
		a := a
		wg.Go(func() error {
			log.Debug("getting", "path", a.Path)
			data, err := tctx.FileContent(a.Path)
			if err != nil {
				return err
			}
			return tree.WriteFile(root, a.Path, data, a.Flags)
		})
	}
	if err := wg.Wait(); err != nil {
		return stats, err
	}
	stats.Updated += len(byKind[Get])

	for _, a := range byKind[Forget] {
		log.Debug("forgetting", "path", a.Path)
	}
	for _, a := range byKind[Add] {
		log.Debug("keeping local version", "path", a.Path)
	}

	sort.Strings(merges)
	for _, f := range merges {
		outcome, err := ms.Resolve(f, wctx, hist, merger, opts.Labels, log)
		if err != nil {
			return stats, err
		}
		switch outcome {
		case mergestate.OutcomeClean:
			stats.Updated++
		case mergestate.OutcomeResolved:
			stats.Merged++
		default:
			stats.Unresolved++
		}
	}

	for _, a := range byKind[DirRenameMove] {
		log.Debug("moving into renamed directory", "from", a.From, "to", a.Path)
		data, err := wctx.FileContent(a.From)
		if err != nil {
			return stats, err
		}
		if err := tree.WriteFile(root, a.Path, data, a.Flags); err != nil {
			return stats, err
		}
		if err := tree.RemoveFile(root, a.From); err != nil {
			return stats, err
		}
		stats.Updated++
	}
	for _, a := range byKind[DirRenameGet] {
		log.Debug("getting into renamed directory", "from", a.From, "to", a.Path)
		data, err := tctx.FileContent(a.From)
		if err != nil {
			return stats, err
		}
		if err := tree.WriteFile(root, a.Path, data, a.Flags); err != nil {
			return stats, err
		}
		stats.Updated++
	}

	for _, a := range byKind[ExecChange] {
		a := a
		log.Debug("updating flags", "path", a.Path, "flags", string(a.Flags))
		err := tree.ApplyFlags(root, a.Path, a.Flags, func() ([]byte, error) {
			return tctx.FileContent(a.Path)
		})
		if err != nil {
			return stats, err
		}
		stats.Updated++
	}

	if err := ms.Commit(); err != nil {
		return stats, err
	}
	return stats, nil
}
