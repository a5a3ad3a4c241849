package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankitiscracked/stitch/internal/ui"
	"github.com/ankitiscracked/stitch/internal/workspace"
)

func init() {
	register(func(root *cobra.Command) { root.AddCommand(newConflictsCmd()) })
}

func newConflictsCmd() *cobra.Command {
	var jsonOutput bool
	var preview bool

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Show the conflicts of the merge in progress",
		Long: `List every file the current merge left conflicted, with the
overlapping line regions that caused each conflict.

With --preview, a unified diff of the local side against the other side
is printed per file. With --json, the full structured report is emitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Open()
			if err != nil {
				return err
			}
			report, err := ws.Conflicts()
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := report.ToJSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Println(report.FormatSummary())
			for _, f := range report.Files {
				marker := ui.Green("R")
				if f.Status == "unresolved" {
					marker = ui.Red("U")
				}
				fmt.Printf("%s %s", marker, f.Path)
				if f.LocalPath != "" || f.OtherPath != "" {
					src := f.LocalPath
					if src == "" {
						src = f.OtherPath
					}
					fmt.Printf(" %s", ui.Dim("(from "+src+")"))
				}
				fmt.Println()
				for i, h := range f.Hunks {
					if h.EndLine > h.StartLine {
						fmt.Printf("    conflict %d: lines %d-%d\n", i+1, h.StartLine, h.EndLine)
					} else {
						fmt.Printf("    conflict %d: line %d\n", i+1, h.StartLine)
					}
				}
				if preview && f.Preview != "" {
					fmt.Println(ui.Dim(f.Preview))
				}
			}
			if report.HasUnresolved() {
				return fmt.Errorf("%d files unresolved", report.Unresolved)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVarP(&preview, "preview", "p", false, "Show a unified diff per conflicted file")
	return cmd
}
