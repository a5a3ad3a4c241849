package mergestate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ankitiscracked/stitch/internal/filemerge"
	"github.com/ankitiscracked/stitch/internal/manifest"
	"github.com/ankitiscracked/stitch/internal/node"
	"github.com/ankitiscracked/stitch/internal/tree"
)

// Outcome classifies one resolution attempt.
type Outcome int

const (
	// OutcomeClean means the merge produced no conflict at all; the entry is
	// deleted because there is nothing left to track.
	OutcomeClean Outcome = iota
	// OutcomeResolved means an external tool reported success; the entry is
	// kept, marked resolved.
	OutcomeResolved
	// OutcomeUnresolved means conflicts remain; the working file holds
	// marker-annotated (or tool-written) content.
	OutcomeUnresolved
)

// Resolve re-runs the file merge for one conflicted destination path. The
// stashed local content is restored to the working file first, so resolution
// always starts from the pre-merge local version no matter what the previous
// attempt left behind. merger is consulted only when the built-in premerge
// leaves conflicts; passing filemerge.Internal means markers are final.
func (s *Store) Resolve(destPath string, wctx *tree.Context, hist tree.History, merger filemerge.Merger, labels filemerge.Labels, logger *slog.Logger) (Outcome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e, ok := s.entries[destPath]
	if !ok {
		return OutcomeUnresolved, fmt.Errorf("%w: %s", ErrNoEntry, destPath)
	}
	if e.Status == Resolved {
		return OutcomeResolved, nil
	}

	local, err := s.StashedContent(destPath)
	if err != nil {
		return OutcomeUnresolved, err
	}
	other, err := s.sideContent(hist, e.OtherPath, e.OtherNode)
	if err != nil {
		return OutcomeUnresolved, err
	}
	ancestor, err := s.sideContent(hist, e.AncestorPath, e.AncestorNode)
	if err != nil {
		return OutcomeUnresolved, err
	}

	flags := s.reconcileFlags(e, hist, logger)
	if err := tree.WriteFile(wctx.Root(), destPath, local, flags); err != nil {
		return OutcomeUnresolved, fmt.Errorf("failed to restore %s before merge: %w", destPath, err)
	}

	premerged, conflicts, err := filemerge.Internal{}.Merge(local, ancestor, other, labels)
	if err != nil {
		return OutcomeUnresolved, err
	}
	if !conflicts {
		if err := tree.WriteFile(wctx.Root(), destPath, premerged, flags); err != nil {
			return OutcomeUnresolved, err
		}
		s.drop(destPath)
		return OutcomeClean, nil
	}

	if _, builtin := merger.(filemerge.Internal); builtin || merger == nil {
		// no external tool: leave the markers for the user
		if err := tree.WriteFile(wctx.Root(), destPath, premerged, flags); err != nil {
			return OutcomeUnresolved, err
		}
		return OutcomeUnresolved, nil
	}

	merged, conflicts, err := merger.Merge(local, ancestor, other, labels)
	if err != nil {
		return OutcomeUnresolved, err
	}
	if err := tree.WriteFile(wctx.Root(), destPath, merged, flags); err != nil {
		return OutcomeUnresolved, err
	}
	if conflicts {
		return OutcomeUnresolved, nil
	}
	e.Status = Resolved
	s.dirty = true
	return OutcomeResolved, nil
}

// sideContent fetches one side's content by id. The null id means the side
// has no content (file absent there).
func (s *Store) sideContent(hist tree.History, path, contentID string) ([]byte, error) {
	if contentID == "" || contentID == node.Zero {
		return nil, nil
	}
	return hist.FileContent(path, contentID)
}

// reconcileFlags merges the executable bit across the three sides: if the
// local flags match the ancestor's, the other side's change wins. Symlink
// flags are never merged. The persisted state cannot name the ancestor tree,
// so its flags read as plain; a missing ancestor version is warned about
// because the flag merge is then a guess.
func (s *Store) reconcileFlags(e *Entry, hist tree.History, logger *slog.Logger) manifest.Flags {
	fl := e.Flags
	flo := manifest.Flags("")
	if s.other != "" {
		if man, err := hist.ManifestForSnapshot(s.other); err == nil {
			flo = man.FlagsOf(e.OtherPath)
		}
	}
	fla := manifest.Flags("")

	combined := string(fl) + string(flo) + string(fla)
	if strings.Contains(combined, "x") && !strings.Contains(combined, "l") {
		if e.AncestorNode == node.Zero {
			logger.Warn("cannot merge flags: no ancestor version", "path", e.LocalPath)
		} else if fl == fla {
			fl = flo
		}
	}
	return fl
}
