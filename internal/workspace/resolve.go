package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ankitiscracked/stitch/internal/config"
	"github.com/ankitiscracked/stitch/internal/conflicts"
	"github.com/ankitiscracked/stitch/internal/mergestate"
	"github.com/ankitiscracked/stitch/internal/tree"
)

// ResolveResult counts what one resolve pass did.
type ResolveResult struct {
	Resolved   int
	Unresolved int
}

// Resolve re-runs the file merge for the given conflicted paths, or every
// unresolved path when all is set. The current content of each working file
// is saved as path.orig before the merge restarts from the stashed local
// version.
func (ws *Workspace) Resolve(paths []string, all bool) (*ResolveResult, error) {
	lock, err := ws.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	ms, err := ws.mergeState()
	if err != nil {
		return nil, err
	}
	targets, err := pickConflicts(ms, paths, all)
	if err != nil {
		return nil, err
	}

	wctx, err := ws.workingContext()
	if err != nil {
		return nil, err
	}

	res := &ResolveResult{}
	labels := ws.labels(ms.Other(), ws.idx.InMerge())
	for _, p := range targets {
		if err := ws.backupOrig(p); err != nil {
			return nil, err
		}
		outcome, err := ms.Resolve(p, wctx, ws.store, ws.merger(), labels, ws.logger)
		if err != nil {
			return nil, err
		}
		if outcome == mergestate.OutcomeUnresolved {
			res.Unresolved++
		} else {
			res.Resolved++
		}
	}
	if err := ms.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// MarkResolved records the given paths (or all) as resolved without running
// a merge, trusting the working file as-is.
func (ws *Workspace) MarkResolved(paths []string, all bool) error {
	return ws.mark(paths, all, mergestate.Resolved)
}

// MarkUnresolved reopens previously resolved paths.
func (ws *Workspace) MarkUnresolved(paths []string) error {
	return ws.mark(paths, false, mergestate.Unresolved)
}

func (ws *Workspace) mark(paths []string, all bool, st mergestate.Status) error {
	ms, err := ws.mergeState()
	if err != nil {
		return err
	}
	targets := paths
	if all {
		if st == mergestate.Resolved {
			targets = ms.Unresolved()
		} else {
			targets = ms.Paths()
		}
	}
	for _, p := range targets {
		if err := ms.Mark(p, st); err != nil {
			return err
		}
	}
	return ms.Commit()
}

// Conflicts builds the structured conflict report for the merge in progress.
func (ws *Workspace) Conflicts() (*conflicts.Report, error) {
	ms, err := ws.mergeState()
	if err != nil {
		return nil, err
	}
	return conflicts.Build(ms, ws.store)
}

// UnresolvedPaths lists the destination paths still conflicted.
func (ws *Workspace) UnresolvedPaths() ([]string, error) {
	ms, err := ws.mergeState()
	if err != nil {
		return nil, err
	}
	return ms.Unresolved(), nil
}

// AbortMerge restores every conflicted file to its stashed pre-merge content
// and discards the merge: conflict state, pending parents, the second index
// parent, and any interrupted-operation marker.
func (ws *Workspace) AbortMerge() error {
	lock, err := ws.Lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	ms, err := ws.mergeState()
	if err != nil {
		return err
	}

	for _, p := range ms.Paths() {
		e, _ := ms.Get(p)
		data, err := ms.StashedContent(p)
		if err != nil {
			return err
		}
		if e.LocalPath == "" {
			// deleted locally before the merge: nothing to restore
			if err := tree.RemoveFile(ws.root, p); err != nil {
				return err
			}
			continue
		}
		if err := tree.WriteFile(ws.root, e.LocalPath, data, e.Flags); err != nil {
			return err
		}
		if p != e.LocalPath {
			if err := tree.RemoveFile(ws.root, p); err != nil {
				return err
			}
		}
	}

	if err := ms.Reset("", ""); err != nil {
		return err
	}
	if err := config.ClearPendingParentsAt(ws.root); err != nil {
		return err
	}
	if ws.idx.InMerge() {
		ws.idx.SetParents(ws.idx.P1(), "")
	}
	if err := ws.idx.Save(); err != nil {
		return err
	}
	return ws.clearMarker()
}

// backupOrig copies the current working file to path.orig before a re-merge
// overwrites it. A missing working file needs no backup.
func (ws *Workspace) backupOrig(path string) error {
	abs := filepath.Join(ws.root, filepath.FromSlash(path))
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(abs+".orig", data, 0644)
}

func pickConflicts(ms *mergestate.Store, paths []string, all bool) ([]string, error) {
	if all {
		return ms.Unresolved(), nil
	}
	for _, p := range paths {
		if _, ok := ms.Get(p); !ok {
			return nil, fmt.Errorf("%s has no merge conflict", p)
		}
	}
	return paths, nil
}
