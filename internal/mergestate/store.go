// Package mergestate persists per-file conflict state across process exits,
// so an interrupted merge can be resumed or aborted. Two on-disk encodings
// are maintained side by side: a legacy line-oriented file older builds can
// read, and a tagged record file carrying the full entry data. The local
// side of every conflicted file is stashed as a blob before the working copy
// is touched, keyed by a hash of the destination path.
package mergestate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ankitiscracked/stitch/internal/manifest"
	"github.com/ankitiscracked/stitch/internal/node"
	"github.com/ankitiscracked/stitch/internal/store"
)

const (
	dirName         = "merge"
	legacyFileName  = "state"
	currentFileName = "state2"
)

// ErrCorrupt means the conflict state files cannot be trusted: an unknown
// mandatory record or malformed framing was found.
var ErrCorrupt = errors.New("conflict state is corrupt")

// ErrNoEntry is returned when an operation names a path with no conflict
// entry.
var ErrNoEntry = errors.New("no conflict entry")

// Status of one conflict entry.
type Status byte

const (
	Unresolved Status = 'u'
	Resolved   Status = 'r'
)

// Entry records everything needed to re-run one file's merge.
type Entry struct {
	Status       Status
	StashKey     string // hash of the destination path; names the stashed local blob
	LocalPath    string
	AncestorPath string
	AncestorNode string
	OtherPath    string
	OtherNode    string
	Flags        manifest.Flags // local side's flags at stash time
}

// FileVersion identifies one side of a conflicted file.
type FileVersion struct {
	Path  string
	Node  string
	Flags manifest.Flags
}

// Store is the conflict state for one workspace.
type Store struct {
	root    string
	dir     string
	local   string
	other   string
	entries map[string]*Entry
	dirty   bool
}

// Open loads the conflict state for a workspace root. workingParents feeds
// the legacy-format reconciliation: when only the legacy file is usable, the
// other side is inferred from the second working parent.
func Open(root string, workingParents []string) (*Store, error) {
	s := &Store{
		root:    root,
		dir:     filepath.Join(root, ".stitch", dirName),
		entries: make(map[string]*Entry),
	}
	if err := s.read(workingParents); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset discards all conflict state, on disk included, and records the two
// sides of the operation about to run. Pass local="" to leave the store
// fully inactive.
func (s *Store) Reset(local, other string) error {
	s.entries = make(map[string]*Entry)
	s.local = local
	s.other = other
	s.dirty = false
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to clear conflict state: %w", err)
	}
	return nil
}

// Local returns the local-side tree id of the recorded operation.
func (s *Store) Local() string { return s.local }

// Other returns the other-side tree id of the recorded operation.
func (s *Store) Other() string { return s.other }

// Active reports whether any conflict state exists, in memory or on disk.
func (s *Store) Active() bool {
	if s.local != "" || len(s.entries) > 0 {
		return true
	}
	for _, name := range []string{legacyFileName, currentFileName} {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			return true
		}
	}
	return false
}

// Add stashes the local content of a conflicted file and records an
// unresolved entry for its destination path.
func (s *Store) Add(local FileVersion, localContent []byte, ancestor, other FileVersion, destPath string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	key := node.HashString(destPath)
	if err := store.AtomicWriteFile(filepath.Join(s.dir, key), localContent, 0644); err != nil {
		return fmt.Errorf("failed to stash %s: %w", local.Path, err)
	}
	anc := ancestor.Node
	if anc == "" {
		anc = node.Zero
	}
	s.entries[destPath] = &Entry{
		Status:       Unresolved,
		StashKey:     key,
		LocalPath:    local.Path,
		AncestorPath: ancestor.Path,
		AncestorNode: anc,
		OtherPath:    other.Path,
		OtherNode:    other.Node,
		Flags:        local.Flags,
	}
	s.dirty = true
	return nil
}

// Get returns the entry for a destination path.
func (s *Store) Get(path string) (Entry, bool) {
	e, ok := s.entries[path]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Mark sets an entry's status.
func (s *Store) Mark(path string, st Status) error {
	e, ok := s.entries[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoEntry, path)
	}
	e.Status = st
	s.dirty = true
	return nil
}

// drop removes an entry without touching its stash blob.
func (s *Store) drop(path string) {
	delete(s.entries, path)
	s.dirty = true
}

// Paths returns every conflicted destination path in sorted order.
func (s *Store) Paths() []string {
	out := make([]string, 0, len(s.entries))
	for p := range s.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Unresolved returns the destination paths still unresolved, sorted.
func (s *Store) Unresolved() []string {
	var out []string
	for p, e := range s.entries {
		if e.Status == Unresolved {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Counts returns how many entries are unresolved and resolved.
func (s *Store) Counts() (unresolved, resolved int) {
	for _, e := range s.entries {
		if e.Status == Unresolved {
			unresolved++
		} else {
			resolved++
		}
	}
	return
}

// StashedContent reads the stashed local blob for a destination path.
func (s *Store) StashedContent(path string) ([]byte, error) {
	e, ok := s.entries[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEntry, path)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, e.StashKey))
	if err != nil {
		return nil, fmt.Errorf("stashed content for %s: %w", path, err)
	}
	return data, nil
}

// Commit persists the state in both encodings if anything changed since the
// last commit. A clean store is a no-op. When the last entry has been
// resolved away, the state files (stashes included) are deleted instead of
// written empty, so the store reads back inactive.
func (s *Store) Commit() error {
	if !s.dirty {
		return nil
	}
	if len(s.entries) == 0 {
		s.local = ""
		s.other = ""
		s.dirty = false
		if err := os.RemoveAll(s.dir); err != nil {
			return fmt.Errorf("failed to clear conflict state: %w", err)
		}
		return nil
	}
	if err := s.writeRecords(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
