package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankitiscracked/stitch/internal/ui"
	"github.com/ankitiscracked/stitch/internal/workspace"
)

func init() {
	register(func(root *cobra.Command) { root.AddCommand(newInitCmd()) })
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a stitch workspace in the current directory",
		Long: `Initialize the current directory as a stitch workspace.

This creates the .stitch state directory holding the snapshot store, the
working-copy index, and settings. Existing files are untouched; run
'stitch snapshot' to record the first snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			ws, err := workspace.Init(cwd)
			if err != nil {
				return err
			}
			fmt.Printf("%s initialized workspace in %s\n", ui.Green("✓"), ws.Root())
			return nil
		},
	}
}
