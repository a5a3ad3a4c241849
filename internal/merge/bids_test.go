package merge

import (
	"testing"

	"github.com/ankitiscracked/stitch/internal/manifest"
	"github.com/ankitiscracked/stitch/internal/tree"
)

// Criss-cross: each side already has the other's change relative to one of
// the two common ancestors. The keep bid must win so the local version
// survives without a pointless merge.
func TestCalculateKeepBidWins(t *testing.T) {
	h := newFakeHist()

	m1 := manifest.New()
	m1.Set("f.txt", "n1", manifest.FlagNone)
	m2 := manifest.New()
	m2.Set("f.txt", "n2", manifest.FlagNone)

	ancA := manifest.New()
	ancA.Set("f.txt", "n1", manifest.FlagNone) // local unchanged here: bid is get
	ancB := manifest.New()
	ancB.Set("f.txt", "n2", manifest.FlagNone) // remote unchanged here: bid is keep

	wctx := working(h, "", m1, []string{"p1"})
	tctx := h.snap(t, "target", m2)
	ancestors := []*tree.Context{
		h.snap(t, "ancA", ancA),
		h.snap(t, "ancB", ancB),
	}

	plan, err := Calculate(wctx, tctx, ancestors, nil, nil, Opts{BranchMerge: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	wantKind(t, plan, "f.txt", Keep)
}

func TestCalculateConsensus(t *testing.T) {
	h := newFakeHist()

	m1 := manifest.New()
	m1.Set("f.txt", "n1", manifest.FlagNone)
	m2 := manifest.New()
	m2.Set("f.txt", "n2", manifest.FlagNone)

	// both ancestors agree the local side is unchanged
	anc := manifest.New()
	anc.Set("f.txt", "n1", manifest.FlagNone)

	wctx := working(h, "", m1, []string{"p1"})
	tctx := h.snap(t, "target", m2)
	ancestors := []*tree.Context{
		h.snap(t, "ancA", anc.Clone()),
		h.snap(t, "ancB", anc.Clone()),
	}

	plan, err := Calculate(wctx, tctx, ancestors, nil, nil, Opts{BranchMerge: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	wantKind(t, plan, "f.txt", Get)
}

// One ancestor proves the local side unchanged (a get bid) while the other
// sees both sides changed (a merge bid). The get must win even when the
// merge bid's ancestor comes first, not fall through to the arbitrary pick.
func TestCalculateAgreeingGetBidWins(t *testing.T) {
	h := newFakeHist()

	m1 := manifest.New()
	m1.Set("f.txt", "n1", manifest.FlagNone)
	m2 := manifest.New()
	m2.Set("f.txt", "n2", manifest.FlagNone)

	ancB := manifest.New()
	ancB.Set("f.txt", "nB", manifest.FlagNone) // matches neither side: bid is merge
	ancA := manifest.New()
	ancA.Set("f.txt", "n1", manifest.FlagNone) // local unchanged here: bid is get

	wctx := working(h, "", m1, []string{"p1"})
	tctx := h.snap(t, "target", m2)
	ancestors := []*tree.Context{
		h.snap(t, "ancB", ancB),
		h.snap(t, "ancA", ancA),
	}

	plan, err := Calculate(wctx, tctx, ancestors, nil, nil, Opts{BranchMerge: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	wantKind(t, plan, "f.txt", Get)
}

func TestCalculateAmbiguousPicksMerge(t *testing.T) {
	h := newFakeHist()

	m1 := manifest.New()
	m1.Set("f.txt", "n1", manifest.FlagNone)
	m2 := manifest.New()
	m2.Set("f.txt", "n2", manifest.FlagNone)

	// neither ancestor matches either side: both bids are merges with
	// different ancestor nodes, no consensus and no keep
	ancA := manifest.New()
	ancA.Set("f.txt", "nA", manifest.FlagNone)
	ancB := manifest.New()
	ancB.Set("f.txt", "nB", manifest.FlagNone)

	wctx := working(h, "", m1, []string{"p1"})
	tctx := h.snap(t, "target", m2)
	ancestors := []*tree.Context{
		h.snap(t, "ancA", ancA),
		h.snap(t, "ancB", ancB),
	}

	plan, err := Calculate(wctx, tctx, ancestors, nil, nil, Opts{BranchMerge: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	a := wantKind(t, plan, "f.txt", Merge)
	if a.AncestorNode != "nA" {
		t.Fatalf("ambiguous bids should fall back to the first ancestor's, got %q", a.AncestorNode)
	}
}

// A changed/deleted prompt is moot when a sibling ancestor already contains
// the local content: the local "change" is old news and the deletion stands.
func TestResolveTrivialChangedDeleted(t *testing.T) {
	h := newFakeHist()

	m1 := manifest.New()
	m1.Set("f.txt", "nX", manifest.FlagNone)
	m2 := manifest.New() // target deleted f.txt

	ancA := manifest.New()
	ancA.Set("f.txt", "nA", manifest.FlagNone) // differs: prompt from this bid
	ancB := manifest.New()
	ancB.Set("f.txt", "nX", manifest.FlagNone) // already has the local content

	wctx := working(h, "", m1, []string{"p1"})
	tctx := h.snap(t, "target", m2)
	ancestors := []*tree.Context{
		h.snap(t, "ancA", ancA),
		h.snap(t, "ancB", ancB),
	}

	plan, err := Calculate(wctx, tctx, ancestors, nil, nil, Opts{BranchMerge: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	wantKind(t, plan, "f.txt", Remove)
}

// The mirror image: a deleted/changed prompt is moot when a sibling ancestor
// already has the target content, so the file stays deleted.
func TestResolveTrivialDeletedChanged(t *testing.T) {
	h := newFakeHist()

	m1 := manifest.New() // deleted locally
	m2 := manifest.New()
	m2.Set("f.txt", "nY", manifest.FlagNone)

	ancA := manifest.New()
	ancA.Set("f.txt", "nA", manifest.FlagNone) // differs: prompt from this bid
	ancB := manifest.New()
	ancB.Set("f.txt", "nY", manifest.FlagNone) // already has the target content

	wctx := working(h, "", m1, []string{"p1"})
	tctx := h.snap(t, "target", m2)
	ancestors := []*tree.Context{
		h.snap(t, "ancA", ancA),
		h.snap(t, "ancB", ancB),
	}

	plan, err := Calculate(wctx, tctx, ancestors, nil, nil, Opts{BranchMerge: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if _, planned := plan.Actions["f.txt"]; planned {
		t.Fatalf("the file should stay deleted, got %+v", plan.Actions["f.txt"])
	}
}

func TestCalculateSingleAncestorMatchesPlanner(t *testing.T) {
	h := newFakeHist()

	ma := manifest.New()
	ma.Set("a.txt", "a1", manifest.FlagNone)
	ma.Set("b.txt", "a2", manifest.FlagNone)

	m1 := manifest.New()
	m1.Set("a.txt", "w1", manifest.FlagNone)
	m1.Set("b.txt", "a2", manifest.FlagNone)

	m2 := manifest.New()
	m2.Set("a.txt", "a1", manifest.FlagNone)
	m2.Set("b.txt", "t2", manifest.FlagNone)

	wctx := working(h, "", m1, []string{"base"})
	tctx := h.snap(t, "target", m2)
	actx := h.snap(t, "base", ma)

	direct, err := planOne(wctx, tctx, actx, nil, nil, Opts{})
	if err != nil {
		t.Fatalf("planOne: %v", err)
	}
	viaCalc, err := Calculate(wctx, tctx, []*tree.Context{actx}, nil, nil, Opts{})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if len(direct.Actions) != len(viaCalc.Actions) {
		t.Fatalf("action counts differ: %d vs %d", len(direct.Actions), len(viaCalc.Actions))
	}
	for f, a := range direct.Actions {
		if viaCalc.Actions[f] != a {
			t.Fatalf("%s: %+v vs %+v", f, a, viaCalc.Actions[f])
		}
	}
}
