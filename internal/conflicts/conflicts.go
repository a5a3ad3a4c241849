// Package conflicts builds a structured report of an in-progress merge's
// conflicted files, with the overlapping line regions that caused each
// conflict and a unified-diff preview of the two sides.
package conflicts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ankitiscracked/stitch/internal/mergestate"
	"github.com/ankitiscracked/stitch/internal/node"
	"github.com/ankitiscracked/stitch/internal/tree"
)

// Hunk is one overlapping change region between the two sides.
type Hunk struct {
	StartLine     int      `json:"start_line"`
	EndLine       int      `json:"end_line"`
	LocalLines    []string `json:"local_lines"`
	OtherLines    []string `json:"other_lines"`
	AncestorLines []string `json:"ancestor_lines"`
}

// FileConflict describes one conflicted destination path.
type FileConflict struct {
	Path      string `json:"path"`
	Status    string `json:"status"` // "unresolved" or "resolved"
	LocalPath string `json:"local_path,omitempty"`
	OtherPath string `json:"other_path,omitempty"`
	Hunks     []Hunk `json:"hunks,omitempty"`
	// Preview is a unified diff of the local side against the other side.
	Preview string `json:"preview,omitempty"`
}

// Report covers every file the conflict state store tracks.
type Report struct {
	Local      string         `json:"local"`
	Other      string         `json:"other"`
	Files      []FileConflict `json:"files"`
	Unresolved int            `json:"unresolved"`
	Resolved   int            `json:"resolved"`
}

// Build assembles a report from the conflict state store. Side content comes
// from the stash (local) and the snapshot store (ancestor, other); a side
// whose content cannot be read still appears in the report, without hunks.
func Build(ms *mergestate.Store, hist tree.History) (*Report, error) {
	r := &Report{Local: ms.Local(), Other: ms.Other()}
	for _, p := range ms.Paths() {
		e, _ := ms.Get(p)
		fc := FileConflict{Path: p, Status: "resolved"}
		if e.LocalPath != p {
			fc.LocalPath = e.LocalPath
		}
		if e.OtherPath != p {
			fc.OtherPath = e.OtherPath
		}
		if e.Status == mergestate.Unresolved {
			fc.Status = "unresolved"
			r.Unresolved++
			fillDetails(&fc, ms, hist, e)
		} else {
			r.Resolved++
		}
		r.Files = append(r.Files, fc)
	}
	return r, nil
}

func fillDetails(fc *FileConflict, ms *mergestate.Store, hist tree.History, e mergestate.Entry) {
	local, err := ms.StashedContent(fc.Path)
	if err != nil {
		return
	}
	other := sideContent(hist, e.OtherPath, e.OtherNode)
	ancestor := sideContent(hist, e.AncestorPath, e.AncestorNode)

	fc.Hunks = findConflictingHunks(string(ancestor), string(local), string(other))
	fc.Preview, _ = difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(local)),
		B:        difflib.SplitLines(string(other)),
		FromFile: "local/" + e.LocalPath,
		ToFile:   "other/" + e.OtherPath,
		Context:  3,
	})
}

func sideContent(hist tree.History, path, contentID string) []byte {
	if contentID == "" || contentID == node.Zero {
		return nil
	}
	data, err := hist.FileContent(path, contentID)
	if err != nil {
		return nil
	}
	return data
}

// HasUnresolved reports whether any file still needs resolution.
func (r *Report) HasUnresolved() bool {
	return r.Unresolved > 0
}

// ToJSON serializes the report.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FormatSummary returns a one-line human-readable summary.
func (r *Report) FormatSummary() string {
	if len(r.Files) == 0 {
		return "no merge in progress"
	}
	if r.Unresolved == 0 {
		return fmt.Sprintf("all %d conflicts resolved", r.Resolved)
	}
	totalHunks := 0
	for _, f := range r.Files {
		totalHunks += len(f.Hunks)
	}
	return fmt.Sprintf("%d unresolved files with %d overlapping regions (%d resolved)",
		r.Unresolved, totalHunks, r.Resolved)
}

// lineRange tracks the line positions of a change.
type lineRange struct {
	start int
	end   int
}

// findConflictingHunks locates changes against the ancestor that overlap
// between the two sides.
func findConflictingHunks(ancestor, local, other string) []Hunk {
	localRanges := getChangedLineRanges(ancestor, local)
	otherRanges := getChangedLineRanges(ancestor, other)

	var hunks []Hunk
	for _, lr := range localRanges {
		for _, or := range otherRanges {
			if !rangesOverlap(lr, or) {
				continue
			}
			hunks = append(hunks, Hunk{
				StartLine:     lr.start,
				EndLine:       max(lr.end, or.end),
				AncestorLines: getLines(ancestor, lr.start, lr.end),
				LocalLines:    getLines(local, lr.start, lr.end),
				OtherLines:    getLines(other, or.start, or.end),
			})
		}
	}
	return hunks
}

// getChangedLineRanges returns the line ranges modified between two texts.
func getChangedLineRanges(base, modified string) []lineRange {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(base, modified, true)

	var ranges []lineRange
	lineNum := 1
	for _, d := range diffs {
		lineCount := strings.Count(d.Text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			lineNum += lineCount
		case diffmatchpatch.DiffDelete, diffmatchpatch.DiffInsert:
			endLine := lineNum + lineCount
			if lineCount == 0 {
				endLine = lineNum
			}
			// merge with the previous range when adjacent
			if len(ranges) > 0 && ranges[len(ranges)-1].end >= lineNum-1 {
				ranges[len(ranges)-1].end = max(ranges[len(ranges)-1].end, endLine)
			} else {
				ranges = append(ranges, lineRange{start: lineNum, end: endLine})
			}
			if d.Type == diffmatchpatch.DiffDelete {
				lineNum += lineCount
			}
		}
	}
	return ranges
}

func rangesOverlap(a, b lineRange) bool {
	return a.start <= b.end && b.start <= a.end
}

// getLines extracts lines start..end (1-indexed, inclusive) from content.
func getLines(content string, start, end int) []string {
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return nil
	}
	return lines[start-1 : end]
}
