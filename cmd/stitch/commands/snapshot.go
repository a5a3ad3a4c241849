package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankitiscracked/stitch/internal/ui"
	"github.com/ankitiscracked/stitch/internal/workspace"
)

func init() {
	register(func(root *cobra.Command) { root.AddCommand(newSnapshotCmd()) })
}

func newSnapshotCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record the working copy as a new snapshot",
		Long: `Record the current state of the working copy as an immutable snapshot.

The scan respects .stitchignore. If a merge is pending, the snapshot
concludes it and records both parents; unresolved conflicts block the
snapshot until they are resolved or the merge is aborted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Open()
			if err != nil {
				return err
			}
			meta, err := ws.Snapshot(message)
			if err != nil {
				return err
			}
			fmt.Printf("%s snapshot %s (%d files)\n", ui.Green("✓"), ui.Yellow(shortID(meta.ID)), meta.Files)
			if len(meta.ParentSnapshotIDs) == 2 {
				fmt.Printf("  merge of %s + %s\n",
					ui.Dim(shortID(meta.ParentSnapshotIDs[0])),
					ui.Dim(shortID(meta.ParentSnapshotIDs[1])))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Description for this snapshot")
	return cmd
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
