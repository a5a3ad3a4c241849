package merge

import (
	"log/slog"

	"github.com/ankitiscracked/stitch/internal/copytrace"
	"github.com/ankitiscracked/stitch/internal/dirstate"
	"github.com/ankitiscracked/stitch/internal/tree"
)

// Calculate produces the final plan for updating wctx to tctx. With a single
// ancestor it is the planner plus index cleanup. With several ancestors
// (a criss-cross merge) each ancestor produces a bid and the bids are
// auctioned per path: consensus wins outright, any keep bid wins, then
// agreeing get bids win, and anything still ambiguous falls back to the
// first ancestor's bid with a warning.
//
// copies is consulted only for the single-ancestor case; bid plans run
// without copy tracing because each ancestor would need its own trace and
// the auction prefers conservative bids.
func Calculate(wctx, tctx *tree.Context, ancestors []*tree.Context, idx *dirstate.Dirstate, copies *copytrace.Result, opts Opts) (*Plan, error) {
	log := opts.logger()

	var plan *Plan
	if len(ancestors) == 1 {
		p, err := planOne(wctx, tctx, ancestors[0], idx, copies, opts)
		if err != nil {
			return nil, err
		}
		plan = p
	} else {
		bids := make([]*Plan, 0, len(ancestors))
		for _, actx := range ancestors {
			log.Debug("calculating bids", "ancestor", actx.ID())
			p, err := planOne(wctx, tctx, actx, idx, nil, opts)
			if err != nil {
				return nil, err
			}
			resolveTrivial(p, wctx, tctx, actx, ancestors)
			bids = append(bids, p)
		}
		plan = auction(bids, log)
	}

	forgetRemoved(plan, wctx.Manifest(), tctx.Manifest(), idx, opts)
	return plan, nil
}

// resolveTrivial downgrades prompt actions a sibling ancestor proves moot:
// a changed/deleted prompt where some other ancestor already has the local
// content means the local change is not new, so the deletion stands; a
// deleted/changed prompt where some other ancestor has the target content
// means the remote change is not new, so the file stays deleted.
func resolveTrivial(p *Plan, wctx, tctx, actx *tree.Context, ancestors []*tree.Context) {
	m1, m2 := wctx.Manifest(), tctx.Manifest()
	for f, a := range p.Actions {
		switch a.Kind {
		case ChangedDeleted:
			for _, other := range ancestors {
				if other.ID() == actx.ID() {
					continue
				}
				oa := other.Manifest()
				if oa.Contains(f) && oa.Node(f) == m1.Node(f) {
					p.set(Action{Path: f, Kind: Remove, Note: "prompt same"})
					break
				}
			}
		case DeletedChanged:
			for _, other := range ancestors {
				if other.ID() == actx.ID() {
					continue
				}
				oa := other.Manifest()
				if oa.Contains(f) && oa.Node(f) == m2.Node(f) {
					delete(p.Actions, f)
					break
				}
			}
		}
	}
}

// auction merges per-ancestor bid plans into one plan.
func auction(bids []*Plan, log *slog.Logger) *Plan {
	plan := NewPlan()

	// the smallest warning sets across bids: more ancestors mean more
	// rename information, so extra divergences are usually false positives
	for _, b := range bids {
		if plan.Diverge == nil || len(b.Diverge) < len(plan.Diverge) {
			plan.Diverge = b.Diverge
		}
		if plan.RenameDelete == nil || len(b.RenameDelete) < len(plan.RenameDelete) {
			plan.RenameDelete = b.RenameDelete
		}
	}
	if plan.Diverge == nil {
		plan.Diverge = make(map[string][]string)
	}
	if plan.RenameDelete == nil {
		plan.RenameDelete = make(map[string][]string)
	}

	byPath := make(map[string][]Action)
	for _, b := range bids {
		for f, a := range b.Actions {
			byPath[f] = append(byPath[f], a)
		}
	}

	log.Debug("auction for merging merge bids")
	for f, l := range byPath {
		if consensus(l) {
			plan.set(l[0])
			continue
		}
		if a, ok := pickKind(l, Keep); ok {
			log.Debug("bid auction", "path", f, "pick", "keep")
			plan.set(a)
			continue
		}
		if a, ok := agreeingGets(l); ok {
			log.Debug("bid auction", "path", f, "pick", "get")
			plan.set(a)
			continue
		}
		log.Debug("bid auction: ambiguous", "path", f)
		for _, a := range l {
			log.Debug(" bid", "path", f, "kind", a.Kind.String(), "note", a.Note)
		}
		log.Warn("ambiguous bids, picking the first", "path", f, "kind", l[0].Kind.String())
		plan.set(l[0])
	}
	return plan
}

func consensus(l []Action) bool {
	for _, a := range l[1:] {
		if a != l[0] {
			return false
		}
	}
	return true
}

func pickKind(l []Action, k Kind) (Action, bool) {
	for _, a := range l {
		if a.Kind == k {
			return a, true
		}
	}
	return Action{}, false
}

// agreeingGets accepts the get bid when every get bid for the path is the
// same action. A lone get among merges counts: some ancestor proved the
// local side unchanged, so taking the remote version is safe.
func agreeingGets(l []Action) (Action, bool) {
	var g Action
	found := false
	for _, a := range l {
		if a.Kind != Get {
			continue
		}
		if !found {
			g, found = a, true
		} else if a != g {
			return Action{}, false
		}
	}
	return g, found
}
