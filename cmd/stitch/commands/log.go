package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankitiscracked/stitch/internal/ui"
	"github.com/ankitiscracked/stitch/internal/workspace"
)

func init() {
	register(func(root *cobra.Command) { root.AddCommand(newLogCmd()) })
}

func newLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Open()
			if err != nil {
				return err
			}
			metas, err := ws.Log(limit)
			if err != nil {
				return err
			}
			p1 := ws.Index().P1()
			for _, m := range metas {
				head := " "
				if m.ID == p1 {
					head = ui.Green("@")
				}
				line := fmt.Sprintf("%s %s %s", head, ui.Yellow(shortID(m.ID)), ui.Dim(m.CreatedAt))
				fmt.Println(line)
				if len(m.ParentSnapshotIDs) == 2 {
					fmt.Printf("    merge of %s + %s\n",
						ui.Dim(shortID(m.ParentSnapshotIDs[0])),
						ui.Dim(shortID(m.ParentSnapshotIDs[1])))
				}
				if m.Message != "" {
					fmt.Printf("    %s\n", m.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many snapshots")
	return cmd
}
