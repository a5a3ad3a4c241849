// Package merge turns three tree snapshots into a per-path action plan and
// applies that plan to the working copy and the index. Planning is pure:
// the plan is a function of the manifests, the copy information, and the
// options. Applying mutates the filesystem, the conflict state store, and
// the working-copy index, in a fixed phase order.
package merge

import (
	"sort"

	"github.com/ankitiscracked/stitch/internal/manifest"
)

// Kind enumerates the closed set of per-path actions.
type Kind int

const (
	// Keep leaves the working copy untouched.
	Keep Kind = iota
	// Get writes the target side's content.
	Get
	// ExecChange updates flags only; content is already correct.
	ExecChange
	// Remove deletes the file from the working copy.
	Remove
	// Forget drops the path from the index without touching the file.
	Forget
	// Add starts tracking a path whose content is already on disk.
	Add
	// Merge runs a three-way file merge.
	Merge
	// DirRenameMove relocates a local file into a directory the other side
	// renamed; content comes from the working copy.
	DirRenameMove
	// DirRenameGet materializes a target file into a directory renamed
	// locally; content comes from the target side.
	DirRenameGet
	// ChangedDeleted is a pending conflict: changed locally, deleted on the
	// target side.
	ChangedDeleted
	// DeletedChanged is a pending conflict: deleted locally, changed on the
	// target side.
	DeletedChanged
)

func (k Kind) String() string {
	switch k {
	case Keep:
		return "keep"
	case Get:
		return "get"
	case ExecChange:
		return "exec"
	case Remove:
		return "remove"
	case Forget:
		return "forget"
	case Add:
		return "add"
	case Merge:
		return "merge"
	case DirRenameMove:
		return "dir-rename-move"
	case DirRenameGet:
		return "dir-rename-get"
	case ChangedDeleted:
		return "changed-deleted"
	case DeletedChanged:
		return "deleted-changed"
	}
	return "unknown"
}

// Action is the decided operation for one path. Which payload fields are
// meaningful depends on Kind: Flags for Get/ExecChange/DirRename*/
// DeletedChanged, From for the directory-rename kinds, the three side paths
// plus AncestorNode and Move for Merge and the prompt kinds.
type Action struct {
	Path  string
	Kind  Kind
	Flags manifest.Flags
	From  string

	Local        string
	Other        string
	Ancestor     string
	AncestorNode string
	Move         bool

	// Note names the rule that produced the action, for logs and conflict
	// reports.
	Note string
}

// Plan is a resolved action set: exactly one action per affected path, plus
// the rename races the copy tracer could not settle.
type Plan struct {
	Actions      map[string]Action
	Diverge      map[string][]string
	RenameDelete map[string][]string
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{
		Actions:      make(map[string]Action),
		Diverge:      make(map[string][]string),
		RenameDelete: make(map[string][]string),
	}
}

func (p *Plan) set(a Action) {
	p.Actions[a.Path] = a
}

// Paths returns every planned path in sorted order.
func (p *Plan) Paths() []string {
	out := make([]string, 0, len(p.Actions))
	for f := range p.Actions {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ByKind groups the actions by kind, each group in path order. The grouping
// is derived on demand; the map of actions stays the single source of truth.
func (p *Plan) ByKind() map[Kind][]Action {
	out := make(map[Kind][]Action)
	for _, f := range p.Paths() {
		a := p.Actions[f]
		out[a.Kind] = append(out[a.Kind], a)
	}
	return out
}

// Counts returns how many planned actions have each kind.
func (p *Plan) Counts() map[Kind]int {
	out := make(map[Kind]int)
	for _, a := range p.Actions {
		out[a.Kind]++
	}
	return out
}
