package merge

import (
	"github.com/ankitiscracked/stitch/internal/dirstate"
)

// RecordUpdates writes the applied plan's outcome into the index. During a
// branch merge files touched by the other side are marked merged so the next
// snapshot records both parents' contribution; a plain update records plain
// tracked entries and drops what was removed.
func RecordUpdates(plan *Plan, branchMerge bool, idx *dirstate.Dirstate) {
	for _, f := range plan.Paths() {
		a := plan.Actions[f]
		switch a.Kind {
		case Remove:
			if branchMerge {
				idx.SetTrackedRemoved(f)
			} else {
				idx.Drop(f)
			}
		case Forget:
			idx.Drop(f)
		case Add:
			if !branchMerge {
				idx.SetTrackedAdded(f)
			}
		case ExecChange:
			idx.SetTrackedNormal(f)
		case Get:
			if branchMerge {
				idx.SetTrackedMerged(f, "")
			} else {
				idx.SetTrackedNormal(f)
			}
		case Merge:
			if branchMerge {
				if a.Move && a.Local != f {
					idx.SetTrackedRemoved(a.Local)
				}
				src := ""
				if a.Local != a.Other {
					// a rename or copy merge: remember the provenance
					if a.Local != f {
						src = a.Local
					} else {
						src = a.Other
					}
				}
				idx.SetTrackedMerged(f, src)
			} else {
				if a.Other == f {
					idx.SetTrackedNormal(f)
				}
				if a.Move && a.Local != f {
					idx.Drop(a.Local)
				}
			}
		case DirRenameMove:
			if branchMerge {
				idx.SetTrackedMerged(f, a.From)
				idx.SetTrackedRemoved(a.From)
			} else {
				idx.SetTrackedNormal(f)
				idx.Drop(a.From)
			}
		case DirRenameGet:
			if branchMerge {
				idx.SetTrackedMerged(f, a.From)
			} else {
				idx.SetTrackedNormal(f)
			}
		}
		// Keep and the pending conflict kinds leave the index alone
	}
}
