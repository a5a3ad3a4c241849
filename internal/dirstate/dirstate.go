// Package dirstate is the working-copy index: which paths are tracked, what
// state each is in relative to the current parents, and which snapshot(s)
// the working copy is based on. The merge machinery mutates it through a
// small set of primitives and wraps parent rewrites in a transaction.
package dirstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ankitiscracked/stitch/internal/store"
)

const (
	stateFileName  = "dirstate.json"
	legacyFileName = "parents.json"
	currentVersion = 1
)

// State is a tracked path's relationship to the first parent.
type State string

const (
	Normal  State = "n" // clean or locally modified, tracked in p1
	Added   State = "a" // scheduled for addition
	Removed State = "r" // scheduled for removal
	Merged  State = "m" // result of a file merge, pending snapshot
)

// Entry is the recorded state of one tracked path.
type Entry struct {
	State State `json:"state"`
	// CopySource names the path this one was copied or renamed from, for
	// the next snapshot to record as provenance.
	CopySource string `json:"copy_source,omitempty"`
}

// Dirstate holds the index for one workspace.
type Dirstate struct {
	path    string
	Version int
	parents []string
	entries map[string]Entry

	dirty  bool
	backup *txBackup
}

type txBackup struct {
	parents []string
	entries map[string]Entry
}

type jsonDirstate struct {
	Version int              `json:"version"`
	Parents []string         `json:"parents"`
	Entries map[string]Entry `json:"entries"`
}

// legacyParents is the old layout that tracked only the parent pointers.
type legacyParents struct {
	Parents []string `json:"parents"`
}

// Path returns the index file location for a workspace root.
func Path(root string) string {
	return filepath.Join(root, ".stitch", stateFileName)
}

// Load reads the index for a workspace root. A missing file yields an empty
// index; the legacy parents-only file is honored when the current file is
// absent.
func Load(root string) (*Dirstate, error) {
	d := &Dirstate{
		path:    Path(root),
		Version: currentVersion,
		entries: make(map[string]Entry),
	}

	if data, err := os.ReadFile(d.path); err == nil {
		var js jsonDirstate
		if err := json.Unmarshal(data, &js); err != nil {
			return nil, fmt.Errorf("failed to parse dirstate: %w", err)
		}
		if js.Version != 0 {
			d.Version = js.Version
		}
		d.parents = normalizeParents(js.Parents)
		if js.Entries != nil {
			d.entries = js.Entries
		}
		return d, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	legacyPath := filepath.Join(root, ".stitch", legacyFileName)
	if data, err := os.ReadFile(legacyPath); err == nil {
		var legacy legacyParents
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("failed to parse legacy parents file: %w", err)
		}
		d.parents = normalizeParents(legacy.Parents)
		d.dirty = true
		return d, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return d, nil
}

// Save writes the index atomically.
func (d *Dirstate) Save() error {
	js := jsonDirstate{
		Version: d.Version,
		Parents: d.parents,
		Entries: d.entries,
	}
	data, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dirstate: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return err
	}
	if err := store.AtomicWriteFile(d.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dirstate: %w", err)
	}
	d.dirty = false
	return nil
}

// Parents returns the working copy's parent snapshot ids (0, 1, or 2).
func (d *Dirstate) Parents() []string {
	out := make([]string, len(d.parents))
	copy(out, d.parents)
	return out
}

// P1 returns the first parent, or "" before the first snapshot.
func (d *Dirstate) P1() string {
	if len(d.parents) == 0 {
		return ""
	}
	return d.parents[0]
}

// P2 returns the second parent, or "" outside an uncommitted merge.
func (d *Dirstate) P2() string {
	if len(d.parents) < 2 {
		return ""
	}
	return d.parents[1]
}

// InMerge reports whether the index carries two parents.
func (d *Dirstate) InMerge() bool { return len(d.parents) == 2 }

// SetParents rewrites the parent pointers. Pass p2="" to leave a single
// parent.
func (d *Dirstate) SetParents(p1, p2 string) {
	ps := []string{}
	if p1 != "" {
		ps = append(ps, p1)
	}
	if p2 != "" {
		ps = append(ps, p2)
	}
	d.parents = normalizeParents(ps)
	d.dirty = true
}

// Get returns the entry for a path.
func (d *Dirstate) Get(path string) (Entry, bool) {
	e, ok := d.entries[path]
	return e, ok
}

// IsTracked reports whether the index knows the path in any state other
// than removed.
func (d *Dirstate) IsTracked(path string) bool {
	e, ok := d.entries[path]
	return ok && e.State != Removed
}

// IsAdded reports whether the path is scheduled for addition.
func (d *Dirstate) IsAdded(path string) bool {
	e, ok := d.entries[path]
	return ok && e.State == Added
}

// SetTrackedNormal marks a path clean relative to the first parent.
func (d *Dirstate) SetTrackedNormal(path string) {
	d.entries[path] = Entry{State: Normal}
	d.dirty = true
}

// SetTrackedAdded schedules a path for addition.
func (d *Dirstate) SetTrackedAdded(path string) {
	d.entries[path] = Entry{State: Added}
	d.dirty = true
}

// SetTrackedRemoved schedules a path for removal.
func (d *Dirstate) SetTrackedRemoved(path string) {
	d.entries[path] = Entry{State: Removed}
	d.dirty = true
}

// SetTrackedMerged records a path as the product of a file merge. copySource
// may be "" when the path did not move.
func (d *Dirstate) SetTrackedMerged(path, copySource string) {
	d.entries[path] = Entry{State: Merged, CopySource: copySource}
	d.dirty = true
}

// Drop forgets a path entirely.
func (d *Dirstate) Drop(path string) {
	delete(d.entries, path)
	d.dirty = true
}

// Paths returns every indexed path in sorted order, removed entries
// included.
func (d *Dirstate) Paths() []string {
	out := make([]string, 0, len(d.entries))
	for p := range d.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Copies returns the destination → source copy map accumulated since the
// last snapshot.
func (d *Dirstate) Copies() map[string]string {
	out := make(map[string]string)
	for p, e := range d.entries {
		if e.CopySource != "" {
			out[p] = e.CopySource
		}
	}
	return out
}

// Dirty reports whether unsaved mutations exist.
func (d *Dirstate) Dirty() bool { return d.dirty }

// BeginParentChange snapshots the index so a failed operation can roll back
// to its pre-operation parents and entries.
func (d *Dirstate) BeginParentChange() {
	entries := make(map[string]Entry, len(d.entries))
	for p, e := range d.entries {
		entries[p] = e
	}
	parents := make([]string, len(d.parents))
	copy(parents, d.parents)
	d.backup = &txBackup{parents: parents, entries: entries}
}

// EndParentChange commits the parent change by persisting the index.
func (d *Dirstate) EndParentChange() error {
	d.backup = nil
	return d.Save()
}

// RollbackParentChange restores the state captured by BeginParentChange.
// Nothing is written: the on-disk file still holds the pre-operation state.
func (d *Dirstate) RollbackParentChange() {
	if d.backup == nil {
		return
	}
	d.parents = d.backup.parents
	d.entries = d.backup.entries
	d.backup = nil
	d.dirty = false
}

func normalizeParents(parents []string) []string {
	seen := make(map[string]struct{}, len(parents))
	out := make([]string, 0, len(parents))
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
	if len(out) > 2 {
		out = out[:2]
	}
	return out
}
