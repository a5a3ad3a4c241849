// Package tree provides a uniform view over the two kinds of file trees the
// merge machinery compares: committed snapshots and the working copy.
package tree

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ankitiscracked/stitch/internal/manifest"
)

// History is the read-only surface of the snapshot store the merge engine
// consumes. store.Store implements it.
type History interface {
	ManifestForSnapshot(id string) (*manifest.Manifest, error)
	FileContent(path, contentID string) ([]byte, error)
	Parents(id string) ([]string, error)
	SnapshotCopies(id string) (map[string]string, error)
}

// WorkingID is the pseudo-id under which the working copy participates in
// graph walks.
const WorkingID = ""

// Context is one side of a merge: a tree, its manifest, and access to file
// content. A Context is either a committed snapshot or the working copy.
type Context struct {
	hist    History
	id      string
	man     *manifest.Manifest
	parents []string
	root    string            // working copy only
	copies  map[string]string // working copy only: dirstate copy map
}

// Snapshot opens a committed snapshot as a Context.
func Snapshot(hist History, id string) (*Context, error) {
	man, err := hist.ManifestForSnapshot(id)
	if err != nil {
		return nil, fmt.Errorf("open tree %s: %w", id, err)
	}
	parents, err := hist.Parents(id)
	if err != nil {
		return nil, fmt.Errorf("open tree %s: %w", id, err)
	}
	return &Context{hist: hist, id: id, man: man, parents: parents}, nil
}

// Empty returns a context for the null tree, used as the ancestor when a
// side has no snapshot history.
func Empty(hist History) *Context {
	return &Context{hist: hist, man: manifest.New()}
}

// Working wraps the working copy: a scanned manifest, the index's parents,
// and the index's copy map.
func Working(hist History, root string, man *manifest.Manifest, parents []string, copies map[string]string) *Context {
	return &Context{
		hist:    hist,
		id:      WorkingID,
		man:     man,
		parents: parents,
		root:    root,
		copies:  copies,
	}
}

// ID returns the snapshot id, or WorkingID for the working copy.
func (c *Context) ID() string { return c.id }

// Root returns the on-disk root of the working copy, or "" for a snapshot.
func (c *Context) Root() string { return c.root }

// IsWorking reports whether this context is the working copy.
func (c *Context) IsWorking() bool { return c.id == WorkingID }

// Manifest returns the tree's manifest.
func (c *Context) Manifest() *manifest.Manifest { return c.man }

// Parents returns the tree's parent snapshot ids.
func (c *Context) Parents() []string { return c.parents }

// PrimaryParent returns the first parent, or "" for a root.
func (c *Context) PrimaryParent() string {
	if len(c.parents) == 0 {
		return ""
	}
	return c.parents[0]
}

// Copies returns the copy provenance this tree records: the dirstate copy
// map for the working copy, the snapshot's copies field otherwise.
func (c *Context) Copies() (map[string]string, error) {
	if c.IsWorking() {
		return c.copies, nil
	}
	return c.hist.SnapshotCopies(c.id)
}

// FileContent returns the content of a tracked file. Working-copy symlinks
// yield their target, matching how link content is hashed and stored.
func (c *Context) FileContent(path string) ([]byte, error) {
	e, ok := c.man.Get(path)
	if !ok {
		return nil, fmt.Errorf("%s not in tree %s", path, c.describe())
	}
	if !c.IsWorking() {
		return c.hist.FileContent(path, e.Node)
	}
	abs := filepath.Join(c.root, filepath.FromSlash(path))
	if e.Flags == manifest.FlagLink {
		target, err := os.Readlink(abs)
		if err != nil {
			return nil, fmt.Errorf("read link %s: %w", path, err)
		}
		return []byte(target), nil
	}
	return os.ReadFile(abs)
}

// FileFlags returns the manifest flags of a tracked file.
func (c *Context) FileFlags(path string) manifest.Flags {
	return c.man.FlagsOf(path)
}

func (c *Context) describe() string {
	if c.IsWorking() {
		return "working copy"
	}
	return c.id
}

// Graph adapts a History plus the working copy's parents into a dag.Graph:
// the working pseudo-id resolves to the index parents, everything else to
// stored snapshot parents.
type Graph struct {
	hist           History
	workingParents []string
}

// NewGraph builds a Graph. workingParents may be nil when no working context
// participates in the walk.
func NewGraph(hist History, workingParents []string) *Graph {
	return &Graph{hist: hist, workingParents: workingParents}
}

// Parents implements dag.Graph.
func (g *Graph) Parents(id string) ([]string, error) {
	if id == WorkingID {
		return g.workingParents, nil
	}
	return g.hist.Parents(id)
}
