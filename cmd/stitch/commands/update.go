package commands

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/ankitiscracked/stitch/internal/merge"
	"github.com/ankitiscracked/stitch/internal/ui"
	"github.com/ankitiscracked/stitch/internal/workspace"
)

func init() {
	register(func(root *cobra.Command) { root.AddCommand(newUpdateCmd()) })
}

func newUpdateCmd() *cobra.Command {
	var force bool
	var acceptRemote bool
	var include, exclude []string

	cmd := &cobra.Command{
		Use:   "update [snapshot]",
		Short: "Move the working copy to a snapshot",
		Long: `Move the working copy to the given snapshot (a unique id prefix is
enough), carrying uncommitted local changes along via a three-way merge.
Without an argument the newest snapshot is the target.

With --force, local changes are discarded and the target wins everywhere.
Conflicted files are left with markers; see 'stitch resolve'.

Examples:
  stitch update 3f2a91                # update, merging local changes
  stitch update 3f2a91 -f             # discard local changes
  stitch update 3f2a91 -I 'docs/**'   # only touch paths under docs/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Open()
			if err != nil {
				return err
			}
			partial, err := pathSelector(include, exclude)
			if err != nil {
				return err
			}
			var rev string
			if len(args) > 0 {
				rev = args[0]
			} else {
				metas, err := ws.Log(1)
				if err != nil {
					return err
				}
				if len(metas) == 0 {
					return fmt.Errorf("no snapshots yet")
				}
				rev = metas[0].ID
			}
			res, err := ws.Update(rev, workspace.UpdateOpts{
				Force:        force,
				AcceptRemote: acceptRemote,
				Partial:      partial,
			})
			if err != nil {
				return err
			}
			printStats(res.Stats)
			if res.Stats.Unresolved > 0 {
				fmt.Printf("%s use 'stitch resolve' to retry conflicted files\n", ui.Yellow("!"))
				return fmt.Errorf("%d files unresolved", res.Stats.Unresolved)
			}
			fmt.Printf("%s working copy is now at %s\n", ui.Green("✓"), ui.Yellow(shortID(res.Target)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Discard local changes")
	cmd.Flags().BoolVar(&acceptRemote, "accept-remote", false, "Settle change/delete conflicts in the target's favor")
	cmd.Flags().StringSliceVarP(&include, "include", "I", nil, "Only touch paths matching the glob (repeatable)")
	cmd.Flags().StringSliceVarP(&exclude, "exclude", "X", nil, "Leave paths matching the glob alone (repeatable)")
	return cmd
}

// pathSelector compiles include/exclude globs into a path predicate. A glob
// with a slash matches the full workspace-relative path, a bare one matches
// the base name at any depth. Nil globs mean everything is selected.
func pathSelector(include, exclude []string) (func(string) bool, error) {
	if len(include) == 0 && len(exclude) == 0 {
		return nil, nil
	}
	type matcher struct {
		anchored bool
		g        glob.Glob
	}
	compile := func(patterns []string) ([]matcher, error) {
		out := make([]matcher, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", p, err)
			}
			out = append(out, matcher{anchored: strings.Contains(p, "/"), g: g})
		}
		return out, nil
	}
	matches := func(ms []matcher, path string) bool {
		base := path
		if i := strings.LastIndexByte(base, '/'); i >= 0 {
			base = base[i+1:]
		}
		for _, m := range ms {
			if m.anchored {
				if m.g.Match(path) {
					return true
				}
			} else if m.g.Match(base) {
				return true
			}
		}
		return false
	}
	inc, err := compile(include)
	if err != nil {
		return nil, err
	}
	exc, err := compile(exclude)
	if err != nil {
		return nil, err
	}
	return func(path string) bool {
		if len(inc) > 0 && !matches(inc, path) {
			return false
		}
		return !matches(exc, path)
	}, nil
}

func printStats(s merge.Stats) {
	fmt.Println(s.String())
}
