package commands

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/ankitiscracked/stitch/internal/ui"
	"github.com/ankitiscracked/stitch/internal/workspace"
)

func init() {
	register(func(root *cobra.Command) { root.AddCommand(newResolveCmd()) })
}

func newResolveCmd() *cobra.Command {
	var all bool
	var mark bool
	var unmark bool
	var list bool

	cmd := &cobra.Command{
		Use:   "resolve [paths...]",
		Short: "Retry or settle conflicted files",
		Long: `Re-run the file merge for conflicted paths. The working file is
saved as <path>.orig and the merge restarts from the stashed pre-merge
content, so a botched manual edit is never the merge input.

With --mark the paths are recorded as resolved without merging, trusting
the file as it is on disk. With --unmark a path is reopened.

Examples:
  stitch resolve --all
  stitch resolve --list
  stitch resolve src/main.go
  stitch resolve --mark src/main.go`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mark && unmark {
				return fmt.Errorf("--mark and --unmark are mutually exclusive")
			}
			if !all && !list && len(args) == 0 {
				return fmt.Errorf("name conflicted paths or pass --all")
			}
			ws, err := workspace.Open()
			if err != nil {
				return err
			}
			if list {
				return listConflicts(ws)
			}

			if len(args) > 0 {
				if err := checkConflictPaths(ws, args); err != nil {
					return err
				}
			}

			switch {
			case mark:
				if err := ws.MarkResolved(args, all); err != nil {
					return err
				}
				fmt.Printf("%s marked resolved\n", ui.Green("✓"))
			case unmark:
				if err := ws.MarkUnresolved(args); err != nil {
					return err
				}
				fmt.Printf("%s reopened\n", ui.Yellow("!"))
			default:
				res, err := ws.Resolve(args, all)
				if err != nil {
					return err
				}
				fmt.Printf("%d resolved, %d still conflicted\n", res.Resolved, res.Unresolved)
				if res.Unresolved > 0 {
					return fmt.Errorf("%d files unresolved", res.Unresolved)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Operate on every unresolved file")
	cmd.Flags().BoolVar(&mark, "mark", false, "Mark as resolved without merging")
	cmd.Flags().BoolVar(&unmark, "unmark", false, "Reopen a resolved file")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List conflicted files and their state")
	return cmd
}

// listConflicts prints one line per conflict entry, U for unresolved and R
// for resolved, matching the report the conflicts command renders in full.
func listConflicts(ws *workspace.Workspace) error {
	report, err := ws.Conflicts()
	if err != nil {
		return err
	}
	if len(report.Files) == 0 {
		fmt.Println("no conflicts")
		return nil
	}
	for _, f := range report.Files {
		if f.Status == "unresolved" {
			fmt.Printf("%s %s\n", ui.Red("U"), f.Path)
		} else {
			fmt.Printf("%s %s\n", ui.Green("R"), f.Path)
		}
	}
	return nil
}

// checkConflictPaths verifies the named paths have conflict entries and
// suggests near-misses for typos.
func checkConflictPaths(ws *workspace.Workspace, paths []string) error {
	report, err := ws.Conflicts()
	if err != nil {
		return err
	}
	known := make([]string, 0, len(report.Files))
	for _, f := range report.Files {
		known = append(known, f.Path)
	}
	for _, p := range paths {
		found := false
		for _, k := range known {
			if k == p {
				found = true
				break
			}
		}
		if found {
			continue
		}
		msg := fmt.Sprintf("%s has no merge conflict", p)
		if matches := fuzzy.Find(p, known); len(matches) > 0 {
			n := len(matches)
			if n > 3 {
				n = 3
			}
			sugg := make([]string, 0, n)
			for _, m := range matches[:n] {
				sugg = append(sugg, m.Str)
			}
			msg += "; did you mean " + strings.Join(sugg, ", ") + "?"
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}
