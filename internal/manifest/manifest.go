package manifest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ankitiscracked/stitch/internal/node"
)

// Flags describes the non-content mode of a tracked file.
type Flags string

const (
	FlagNone Flags = ""  // regular file
	FlagExec Flags = "x" // executable bit set
	FlagLink Flags = "l" // symlink; content is the link target
)

// ErrCaseCollision is returned when two tracked paths fold to the same name.
// On a case-insensitive filesystem the working copy cannot hold both, so the
// operation that would create them must abort.
var ErrCaseCollision = fmt.Errorf("case-folding collision")

// FileEntry is one tracked file: its path, content id, and flags.
type FileEntry struct {
	Path  string `json:"path"`
	Node  string `json:"node"`
	Flags Flags  `json:"flags,omitempty"`
}

// Manifest maps every tracked path to its content id and flags.
type Manifest struct {
	Version int
	files   map[string]FileEntry
}

// New creates an empty manifest.
func New() *Manifest {
	return &Manifest{Version: 1, files: make(map[string]FileEntry)}
}

// Set records or replaces the entry for path.
func (m *Manifest) Set(path, contentID string, flags Flags) {
	m.files[path] = FileEntry{Path: path, Node: contentID, Flags: flags}
}

// Delete removes path from the manifest. Missing paths are a no-op.
func (m *Manifest) Delete(path string) {
	delete(m.files, path)
}

// Get returns the entry for path.
func (m *Manifest) Get(path string) (FileEntry, bool) {
	e, ok := m.files[path]
	return e, ok
}

// Contains reports whether path is tracked.
func (m *Manifest) Contains(path string) bool {
	_, ok := m.files[path]
	return ok
}

// Node returns the content id for path, or "" if untracked.
func (m *Manifest) Node(path string) string {
	return m.files[path].Node
}

// FlagsOf returns the flags for path, or FlagNone if untracked.
func (m *Manifest) FlagsOf(path string) Flags {
	return m.files[path].Flags
}

// Len returns the number of tracked paths.
func (m *Manifest) Len() int {
	return len(m.files)
}

// Paths returns all tracked paths in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns an independent copy.
func (m *Manifest) Clone() *Manifest {
	c := &Manifest{Version: m.Version, files: make(map[string]FileEntry, len(m.files))}
	for p, e := range m.files {
		c.files[p] = e
	}
	return c
}

// DiffEntry holds the two sides of one differing path. A nil side means the
// path is absent there.
type DiffEntry struct {
	Left  *FileEntry
	Right *FileEntry
}

// Diff returns every path present in either manifest whose (node, flags)
// differ between the two sides.
func (m *Manifest) Diff(other *Manifest) map[string]DiffEntry {
	out := make(map[string]DiffEntry)
	for p, le := range m.files {
		oe, ok := other.files[p]
		if !ok {
			e := le
			out[p] = DiffEntry{Left: &e}
			continue
		}
		if le.Node != oe.Node || le.Flags != oe.Flags {
			l, r := le, oe
			out[p] = DiffEntry{Left: &l, Right: &r}
		}
	}
	for p, oe := range other.files {
		if _, ok := m.files[p]; !ok {
			e := oe
			out[p] = DiffEntry{Right: &e}
		}
	}
	return out
}

// CheckCaseCollisions scans a set of paths for names that fold to the same
// string. The returned error wraps ErrCaseCollision and names both paths.
func CheckCaseCollisions(paths []string) error {
	folded := make(map[string]string, len(paths))
	for _, p := range paths {
		f := strings.ToLower(p)
		if prev, ok := folded[f]; ok && prev != p {
			return fmt.Errorf("%w: %s and %s", ErrCaseCollision, prev, p)
		}
		folded[f] = p
	}
	return nil
}

type jsonManifest struct {
	Version int         `json:"version"`
	Files   []FileEntry `json:"files"`
}

// ToJSON serializes the manifest with entries in sorted path order, so equal
// manifests produce identical bytes.
func (m *Manifest) ToJSON() ([]byte, error) {
	jm := jsonManifest{Version: m.Version, Files: make([]FileEntry, 0, len(m.files))}
	for _, p := range m.Paths() {
		jm.Files = append(jm.Files, m.files[p])
	}
	return json.MarshalIndent(jm, "", "  ")
}

// FromJSON parses a serialized manifest.
func FromJSON(data []byte) (*Manifest, error) {
	var jm jsonManifest
	if err := json.Unmarshal(data, &jm); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	m := New()
	if jm.Version != 0 {
		m.Version = jm.Version
	}
	for _, e := range jm.Files {
		m.files[e.Path] = e
	}
	return m, nil
}

// Hash computes the manifest's own content id from its canonical JSON form.
func (m *Manifest) Hash() (string, error) {
	data, err := m.ToJSON()
	if err != nil {
		return "", err
	}
	return node.Hash(data), nil
}

// HashFile computes the content id of a file on disk. Symlinks hash their
// target path rather than the file the link points at.
func HashFile(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("failed to read symlink %s: %w", path, err)
		}
		return node.HashString(target), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FlagsFromMode derives manifest flags from a file mode.
func FlagsFromMode(mode os.FileMode) Flags {
	if mode&os.ModeSymlink != 0 {
		return FlagLink
	}
	if mode&0o111 != 0 {
		return FlagExec
	}
	return FlagNone
}
