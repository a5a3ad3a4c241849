package dag

import (
	"container/heap"
	"fmt"
)

// FindLimit computes the lower generation bound for copy tracing between two
// tree tips: walking file histories below this generation cannot contribute
// a rename that matters to the merge of a and b.
//
// The walk visits both histories highest-generation-first, tagging each tree
// with the side that reached it. A tree reached from both sides becomes
// common and stops being interesting; the lowest generation at which an
// interesting (single-sided) tree was visited is the limit. Returns
// ErrNoCommonAncestor if the two histories never meet.
func FindLimit(r *Revs, a, b string) (int, error) {
	if a == b {
		return r.Generation(a)
	}

	side := map[string]int{a: -1, b: 1}
	h := &genHeap{}
	heap.Init(h)
	for _, id := range []string{a, b} {
		g, err := r.Generation(id)
		if err != nil {
			return 0, fmt.Errorf("copy trace limit: %w", err)
		}
		heap.Push(h, genItem{gen: g, id: id})
	}

	interesting := 2
	hasCommon := false
	limit := 0
	limitSet := false

	for interesting > 0 && h.Len() > 0 {
		it := heap.Pop(h).(genItem)
		ps, err := r.Parents(it.id)
		if err != nil {
			return 0, fmt.Errorf("copy trace limit: %w", err)
		}
		for _, p := range ps {
			if _, seen := side[p]; !seen {
				side[p] = side[it.id]
				if side[p] != 0 {
					interesting++
				}
				pg, err := r.Generation(p)
				if err != nil {
					return 0, fmt.Errorf("copy trace limit: %w", err)
				}
				heap.Push(h, genItem{gen: pg, id: p})
			} else if side[p] != 0 && side[p] != side[it.id] {
				// p was interesting but now we know better
				side[p] = 0
				interesting--
				hasCommon = true
			}
		}
		if side[it.id] != 0 {
			limit = it.gen // lowest single-sided generation visited
			limitSet = true
			interesting--
		}
	}

	if !hasCommon || !limitSet {
		return 0, ErrNoCommonAncestor
	}
	return limit, nil
}

type genItem struct {
	gen int
	id  string
}

// genHeap pops the highest generation first; id order breaks ties so the
// walk is deterministic.
type genHeap []genItem

func (h genHeap) Len() int { return len(h) }
func (h genHeap) Less(i, j int) bool {
	if h[i].gen != h[j].gen {
		return h[i].gen > h[j].gen
	}
	return h[i].id > h[j].id
}
func (h genHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *genHeap) Push(x any) { *h = append(*h, x.(genItem)) }
func (h *genHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
