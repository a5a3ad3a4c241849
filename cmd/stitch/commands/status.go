package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankitiscracked/stitch/internal/ui"
	"github.com/ankitiscracked/stitch/internal/workspace"
)

func init() {
	register(func(root *cobra.Command) { root.AddCommand(newStatusCmd()) })
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	var showUntracked bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show changes relative to the working copy parent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Open()
			if err != nil {
				return err
			}
			st, err := ws.Status()
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := st.ToJSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			if st.Parent != "" {
				fmt.Printf("parent: %s\n", ui.Yellow(shortID(st.Parent)))
			}
			if ws.Index().InMerge() {
				fmt.Printf("merge in progress with %s\n", ui.Yellow(shortID(ws.Index().P2())))
			}
			for _, f := range st.Added {
				fmt.Printf("%s %s\n", ui.Green("A"), f)
			}
			for _, f := range st.Modified {
				fmt.Printf("%s %s\n", ui.Cyan("M"), f)
			}
			for _, f := range st.Removed {
				fmt.Printf("%s %s\n", ui.Red("R"), f)
			}
			for _, f := range st.Missing {
				fmt.Printf("%s %s\n", ui.Red("!"), f)
			}
			if showUntracked {
				for _, f := range st.Untracked {
					fmt.Printf("%s %s\n", ui.Dim("?"), f)
				}
			}
			if !st.HasChanges() {
				fmt.Println(ui.Dim("no changes"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVarP(&showUntracked, "untracked", "u", false, "List untracked files too")
	return cmd
}
