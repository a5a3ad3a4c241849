package dag

// CommonAncestorHeads returns the maximal elements of the common-ancestor set
// of a and b: every common ancestor not itself an ancestor of another common
// ancestor. Sorted by id. Empty when the histories are disjoint.
func CommonAncestorHeads(r *Revs, a, b string) ([]string, error) {
	if a == b {
		return []string{a}, nil
	}
	sa, err := r.AncestorSet(a)
	if err != nil {
		return nil, err
	}
	sb, err := r.AncestorSet(b)
	if err != nil {
		return nil, err
	}

	common := make(map[string]struct{})
	for id := range sa {
		if _, ok := sb[id]; ok {
			common[id] = struct{}{}
		}
	}
	if len(common) == 0 {
		return nil, nil
	}

	// The common set is ancestor-closed (an ancestor of a common ancestor is
	// itself a common ancestor), so any non-maximal member is the direct
	// parent of some member. One parent scan finds them all.
	interior := make(map[string]struct{})
	for id := range common {
		ps, err := r.Parents(id)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if _, ok := common[p]; ok {
				interior[p] = struct{}{}
			}
		}
	}

	heads := make(map[string]struct{})
	for id := range common {
		if _, in := interior[id]; !in {
			heads[id] = struct{}{}
		}
	}
	return sortedKeys(heads), nil
}

// Ancestor returns the single best common ancestor of a and b: the
// common-ancestor head with the highest generation, ties broken by the
// smaller id so the choice is stable. Returns ErrNoCommonAncestor when the
// histories are disjoint.
func Ancestor(r *Revs, a, b string) (string, error) {
	heads, err := CommonAncestorHeads(r, a, b)
	if err != nil {
		return "", err
	}
	if len(heads) == 0 {
		return "", ErrNoCommonAncestor
	}
	best := heads[0]
	bestGen, err := r.Generation(best)
	if err != nil {
		return "", err
	}
	for _, h := range heads[1:] {
		g, err := r.Generation(h)
		if err != nil {
			return "", err
		}
		if g > bestGen {
			best, bestGen = h, g
		}
	}
	return best, nil
}

// IsAncestor reports whether anc is reachable from desc by parent links.
// A tree is its own ancestor.
func IsAncestor(r *Revs, anc, desc string) (bool, error) {
	if anc == desc {
		return true, nil
	}
	set, err := r.AncestorSet(desc)
	if err != nil {
		return false, err
	}
	_, ok := set[anc]
	return ok, nil
}
