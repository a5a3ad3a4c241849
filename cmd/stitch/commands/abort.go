package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankitiscracked/stitch/internal/ui"
	"github.com/ankitiscracked/stitch/internal/workspace"
)

func init() {
	register(func(root *cobra.Command) { root.AddCommand(newAbortCmd()) })
}

func newAbortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Back out of the merge in progress",
		Long: `Restore every conflicted file to its pre-merge content and discard
the merge: conflict state, the pending second parent, and any record of
an interrupted operation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Open()
			if err != nil {
				return err
			}
			if err := ws.AbortMerge(); err != nil {
				return err
			}
			fmt.Printf("%s merge aborted\n", ui.Green("✓"))
			return nil
		},
	}
}
