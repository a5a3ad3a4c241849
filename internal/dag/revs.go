// Package dag implements the history-graph algorithms the merge machinery
// needs: generation numbering, common-ancestor computation, and the bounded
// walk that limits copy tracing. Trees are identified by snapshot ids; the
// working copy participates under a pseudo-id supplied by the caller.
package dag

import (
	"fmt"
	"sort"
)

// Graph supplies parent links for tree ids.
type Graph interface {
	Parents(id string) ([]string, error)
}

// ErrCycle is returned when parent links loop back on themselves. History is
// supposed to be acyclic; a cycle means a corrupt store.
var ErrCycle = fmt.Errorf("cycle in snapshot history")

// ErrNoCommonAncestor is returned when two trees share no history.
var ErrNoCommonAncestor = fmt.Errorf("no common ancestor")

// Revs memoizes generation numbers and parent lookups for one operation.
// Generation of a root is 0; every other tree is 1 + max of its parents.
// A child therefore always has a strictly higher generation than each of
// its ancestors, which is the only ordering property the walks below need.
//
// Revs is caller-owned and not safe for concurrent use.
type Revs struct {
	g       Graph
	gen     map[string]int
	parents map[string][]string
}

// NewRevs creates an empty cache over g.
func NewRevs(g Graph) *Revs {
	return &Revs{
		g:       g,
		gen:     make(map[string]int),
		parents: make(map[string][]string),
	}
}

// Parents returns the (memoized) parent ids of a tree.
func (r *Revs) Parents(id string) ([]string, error) {
	if ps, ok := r.parents[id]; ok {
		return ps, nil
	}
	ps, err := r.g.Parents(id)
	if err != nil {
		return nil, err
	}
	r.parents[id] = ps
	return ps, nil
}

// Generation returns the generation number of a tree, computing and caching
// everything below it on the way.
func (r *Revs) Generation(id string) (int, error) {
	if g, ok := r.gen[id]; ok {
		return g, nil
	}

	visiting := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		if _, done := r.gen[cur]; done {
			stack = stack[:len(stack)-1]
			continue
		}
		ps, err := r.Parents(cur)
		if err != nil {
			return 0, err
		}
		if !visiting[cur] {
			visiting[cur] = true
			ready := true
			for _, p := range ps {
				if _, done := r.gen[p]; done {
					continue
				}
				if visiting[p] {
					return 0, fmt.Errorf("%w: %s", ErrCycle, p)
				}
				stack = append(stack, p)
				ready = false
			}
			if !ready {
				continue
			}
		}
		g := 0
		for _, p := range ps {
			if pg := r.gen[p] + 1; pg > g {
				g = pg
			}
		}
		r.gen[cur] = g
		delete(visiting, cur)
		stack = stack[:len(stack)-1]
	}
	return r.gen[id], nil
}

// AncestorSet returns every tree reachable from id by parent links, id
// included.
func (r *Revs) AncestorSet(id string) (map[string]struct{}, error) {
	seen := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		ps, err := r.Parents(cur)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			queue = append(queue, p)
		}
	}
	return seen, nil
}

// sortedKeys returns a set's members in sorted order, for deterministic
// output and errors.
func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
