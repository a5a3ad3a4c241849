package filemerge

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Tool adapts an external merge command to the Merger interface. The command
// is a template whose $local, $ancestor, $other, and $output placeholders are
// replaced with temp file paths. A command without $output is expected to
// edit $local in place. Exit status 0 means the tool resolved the file.
type Tool struct {
	Command string
}

// Merge writes the three versions to temp files, runs the command, and reads
// the result back. A non-zero exit reports a conflict with the local content
// left as the tool last wrote it.
func (t Tool) Merge(local, ancestor, other []byte, labels Labels) ([]byte, bool, error) {
	dir, err := os.MkdirTemp("", "stitch-merge-")
	if err != nil {
		return nil, false, err
	}
	defer os.RemoveAll(dir)

	paths := map[string]string{
		"$local":    filepath.Join(dir, "local"),
		"$ancestor": filepath.Join(dir, "ancestor"),
		"$other":    filepath.Join(dir, "other"),
		"$output":   filepath.Join(dir, "output"),
	}
	for ph, content := range map[string][]byte{
		"$local":    local,
		"$ancestor": ancestor,
		"$other":    other,
	} {
		if err := os.WriteFile(paths[ph], content, 0600); err != nil {
			return nil, false, err
		}
	}

	usesOutput := strings.Contains(t.Command, "$output")
	args := strings.Fields(t.Command)
	if len(args) == 0 {
		return nil, false, fmt.Errorf("empty merge tool command")
	}
	for i, a := range args {
		for ph, p := range paths {
			a = strings.ReplaceAll(a, ph, p)
		}
		args[i] = a
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	runErr := cmd.Run()

	resultPath := paths["$local"]
	if usesOutput {
		resultPath = paths["$output"]
	}
	merged, readErr := os.ReadFile(resultPath)
	if readErr != nil {
		if runErr != nil {
			return local, true, nil
		}
		return nil, false, fmt.Errorf("merge tool wrote no result: %w", readErr)
	}

	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); ok {
			return merged, true, nil
		}
		return nil, false, fmt.Errorf("merge tool failed: %w", runErr)
	}
	return merged, false, nil
}
