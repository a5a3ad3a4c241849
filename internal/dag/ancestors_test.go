package dag

import (
	"errors"
	"testing"
)

// mapGraph is a parent table.
type mapGraph map[string][]string

func (g mapGraph) Parents(id string) ([]string, error) { return g[id], nil }

// fork: base -> a, base -> b
func forkGraph() mapGraph {
	return mapGraph{
		"base": nil,
		"a":    {"base"},
		"b":    {"base"},
	}
}

// criss-cross: base -> x1, x2; c1 and c2 each merge both
func crissGraph() mapGraph {
	return mapGraph{
		"base": nil,
		"x1":   {"base"},
		"x2":   {"base"},
		"c1":   {"x1", "x2"},
		"c2":   {"x2", "x1"},
	}
}

func TestGeneration(t *testing.T) {
	r := NewRevs(crissGraph())
	want := map[string]int{"base": 0, "x1": 1, "x2": 1, "c1": 2, "c2": 2}
	for id, g := range want {
		got, err := r.Generation(id)
		if err != nil {
			t.Fatalf("Generation(%s): %v", id, err)
		}
		if got != g {
			t.Fatalf("Generation(%s) = %d, want %d", id, got, g)
		}
	}
}

func TestGenerationCycle(t *testing.T) {
	r := NewRevs(mapGraph{"a": {"b"}, "b": {"a"}})
	if _, err := r.Generation("a"); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestAncestorFork(t *testing.T) {
	r := NewRevs(forkGraph())
	anc, err := Ancestor(r, "a", "b")
	if err != nil {
		t.Fatalf("Ancestor: %v", err)
	}
	if anc != "base" {
		t.Fatalf("Ancestor = %q, want base", anc)
	}

	heads, err := CommonAncestorHeads(r, "a", "b")
	if err != nil {
		t.Fatalf("CommonAncestorHeads: %v", err)
	}
	if len(heads) != 1 || heads[0] != "base" {
		t.Fatalf("heads = %v, want [base]", heads)
	}
}

func TestAncestorSameNode(t *testing.T) {
	r := NewRevs(forkGraph())
	anc, err := Ancestor(r, "a", "a")
	if err != nil || anc != "a" {
		t.Fatalf("a tree is its own best ancestor: %q, %v", anc, err)
	}
}

func TestAncestorLinear(t *testing.T) {
	r := NewRevs(forkGraph())
	anc, err := Ancestor(r, "base", "a")
	if err != nil || anc != "base" {
		t.Fatalf("linear ancestor wrong: %q, %v", anc, err)
	}
}

func TestCommonAncestorHeadsCrissCross(t *testing.T) {
	r := NewRevs(crissGraph())
	heads, err := CommonAncestorHeads(r, "c1", "c2")
	if err != nil {
		t.Fatalf("CommonAncestorHeads: %v", err)
	}
	// base is an ancestor of both heads and must not appear
	if len(heads) != 2 || heads[0] != "x1" || heads[1] != "x2" {
		t.Fatalf("heads = %v, want [x1 x2]", heads)
	}

	// both heads tie on generation; the smaller id makes the pick stable
	anc, err := Ancestor(r, "c1", "c2")
	if err != nil || anc != "x1" {
		t.Fatalf("Ancestor = %q, %v, want x1", anc, err)
	}
}

func TestAncestorDisjoint(t *testing.T) {
	r := NewRevs(mapGraph{"a": nil, "b": nil})
	if _, err := Ancestor(r, "a", "b"); !errors.Is(err, ErrNoCommonAncestor) {
		t.Fatalf("expected ErrNoCommonAncestor, got %v", err)
	}
}

func TestIsAncestor(t *testing.T) {
	r := NewRevs(crissGraph())
	cases := []struct {
		anc, desc string
		want      bool
	}{
		{"base", "c1", true},
		{"x1", "c2", true},
		{"c1", "c1", true},
		{"c1", "x1", false},
		{"c2", "c1", false},
	}
	for _, c := range cases {
		got, err := IsAncestor(r, c.anc, c.desc)
		if err != nil {
			t.Fatalf("IsAncestor(%s, %s): %v", c.anc, c.desc, err)
		}
		if got != c.want {
			t.Fatalf("IsAncestor(%s, %s) = %v, want %v", c.anc, c.desc, got, c.want)
		}
	}
}

func TestFindLimit(t *testing.T) {
	r := NewRevs(forkGraph())
	limit, err := FindLimit(r, "a", "b")
	if err != nil {
		t.Fatalf("FindLimit: %v", err)
	}
	// the exclusive parts of both sides sit at generation 1
	if limit != 1 {
		t.Fatalf("limit = %d, want 1", limit)
	}
}

func TestFindLimitSameTip(t *testing.T) {
	r := NewRevs(forkGraph())
	limit, err := FindLimit(r, "a", "a")
	if err != nil || limit != 1 {
		t.Fatalf("limit for the same tip is its generation: %d, %v", limit, err)
	}
}

func TestFindLimitDisjoint(t *testing.T) {
	r := NewRevs(mapGraph{"a": nil, "b": nil})
	if _, err := FindLimit(r, "a", "b"); !errors.Is(err, ErrNoCommonAncestor) {
		t.Fatalf("expected ErrNoCommonAncestor, got %v", err)
	}
}

func TestAncestorSet(t *testing.T) {
	r := NewRevs(crissGraph())
	set, err := r.AncestorSet("c1")
	if err != nil {
		t.Fatalf("AncestorSet: %v", err)
	}
	for _, id := range []string{"c1", "x1", "x2", "base"} {
		if _, ok := set[id]; !ok {
			t.Fatalf("%s missing from ancestor set %v", id, set)
		}
	}
	if _, ok := set["c2"]; ok {
		t.Fatalf("c2 is not an ancestor of c1")
	}
}
