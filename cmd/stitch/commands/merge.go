package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankitiscracked/stitch/internal/dag"
	"github.com/ankitiscracked/stitch/internal/merge"
	"github.com/ankitiscracked/stitch/internal/ui"
	"github.com/ankitiscracked/stitch/internal/workspace"
)

func init() {
	register(func(root *cobra.Command) { root.AddCommand(newMergeCmd()) })
}

func newMergeCmd() *cobra.Command {
	var force bool
	var acceptRemote bool
	var ancestor string
	var prefer string

	cmd := &cobra.Command{
		Use:   "merge <snapshot>",
		Short: "Merge a snapshot into the working copy",
		Long: `Merge the given snapshot into the working copy. The next
'stitch snapshot' records both parents and concludes the merge.

Renames and copies are followed across both sides; when the histories
cross, each common ancestor bids and the safest plan wins. Conflicted
files are tracked until resolved; 'stitch abort' backs the merge out.

Examples:
  stitch merge 9c4e10
  stitch merge 9c4e10 --ancestor 3f2a91   # pin the merge base
  stitch merge 9c4e10 --prefer local      # keep our side of change/delete`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := preferPolicy(prefer)
			if err != nil {
				return err
			}
			ws, err := workspace.Open()
			if err != nil {
				return err
			}
			p1 := ws.Index().P1()
			res, err := ws.Merge(args[0], workspace.UpdateOpts{
				Force:        force,
				AcceptRemote: acceptRemote,
				Ancestor:     ancestor,
				Policy:       policy,
			})
			if err != nil {
				return err
			}
			printStats(res.Stats)

			heads, _ := ws.Store().CommonAncestorHeads(p1, res.Target)
			var unresolved []string
			if res.Stats.Unresolved > 0 {
				unresolved, _ = ws.UnresolvedPaths()
			}
			fmt.Println(dag.RenderMergeDiagram(dag.MergeDiagramOpts{
				LocalID:         p1,
				OtherID:         res.Target,
				AncestorIDs:     heads,
				LocalLabel:      "local",
				OtherLabel:      "other",
				Pending:         true,
				UnresolvedPaths: unresolved,
				Colorize:        true,
			}))

			if res.Stats.Unresolved > 0 {
				fmt.Printf("%s resolve conflicts, then 'stitch snapshot' to finish the merge\n", ui.Yellow("!"))
				return fmt.Errorf("%d files unresolved", res.Stats.Unresolved)
			}
			fmt.Printf("%s run 'stitch snapshot' to record the merge\n", ui.Green("✓"))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Merge despite uncommitted changes")
	cmd.Flags().BoolVar(&acceptRemote, "accept-remote", false, "Settle change/delete conflicts in the other side's favor")
	cmd.Flags().StringVar(&ancestor, "ancestor", "", "Use an explicit common ancestor snapshot")
	cmd.Flags().StringVar(&prefer, "prefer", "", "Settle change/delete conflicts: local, other, or defer")
	return cmd
}

// preferPolicy maps the --prefer flag to a conflict policy. Empty means the
// default: record the conflict and leave it for resolve.
func preferPolicy(prefer string) (merge.ConflictPolicy, error) {
	switch prefer {
	case "":
		return nil, nil
	case "local":
		return merge.StaticPolicy{Answer: merge.AcceptLocal}, nil
	case "other":
		return merge.StaticPolicy{Answer: merge.AcceptOther}, nil
	case "defer":
		return merge.StaticPolicy{Answer: merge.Defer}, nil
	default:
		return nil, fmt.Errorf("unknown --prefer value %q (want local, other, or defer)", prefer)
	}
}
