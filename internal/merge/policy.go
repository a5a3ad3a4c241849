package merge

// Decision is a ConflictPolicy's answer for one pending conflict.
type Decision int

const (
	// Defer leaves the conflict for interactive resolution later.
	Defer Decision = iota
	// AcceptLocal keeps the working side's state.
	AcceptLocal
	// AcceptOther takes the target side's state.
	AcceptOther
)

// ConflictPolicy decides change/delete conflicts without a file merge. The
// planner records them as pending actions; SettlePrompts consults the policy
// before the plan is applied.
type ConflictPolicy interface {
	Decide(path string, kind Kind) Decision
}

// StaticPolicy answers every conflict the same way.
type StaticPolicy struct {
	Answer Decision
}

func (p StaticPolicy) Decide(string, Kind) Decision { return p.Answer }

// SettlePrompts rewrites the plan's pending change/delete conflicts per the
// policy. Deferred conflicts keep their pending kind; the applier records
// those in the conflict state store instead of touching the file.
func SettlePrompts(plan *Plan, policy ConflictPolicy) {
	if policy == nil {
		return
	}
	for f, a := range plan.Actions {
		switch a.Kind {
		case ChangedDeleted:
			switch policy.Decide(f, a.Kind) {
			case AcceptLocal:
				plan.set(Action{Path: f, Kind: Add, Note: "prompt keep"})
			case AcceptOther:
				plan.set(Action{Path: f, Kind: Remove, Note: "prompt delete"})
			}
		case DeletedChanged:
			switch policy.Decide(f, a.Kind) {
			case AcceptLocal:
				delete(plan.Actions, f)
			case AcceptOther:
				plan.set(Action{Path: f, Kind: Get, Flags: a.Flags, Note: "prompt recreating"})
			}
		}
	}
}
