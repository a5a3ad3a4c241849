package dag

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ankitiscracked/stitch/internal/ui"
)

// MergeDiagramOpts configures the summary diagram printed after a merge: the
// two heads, the ancestor heads the plan was computed against, and the result
// snapshot or the conflicts still standing in its way.
type MergeDiagramOpts struct {
	LocalID         string
	OtherID         string
	AncestorIDs     []string // common-ancestor heads; more than one means criss-cross
	MergedID        string   // result snapshot; empty while pending or for a dry run
	LocalLabel      string
	OtherLabel      string
	Message         string
	Pending         bool
	UnresolvedPaths []string // conflicted destination paths, listed under the diagram
	Colorize        bool
}

type glyphs struct {
	bar   rune
	left  rune
	right rune
	dash  rune
	tee   rune
}

var (
	unicodeGlyphs = glyphs{bar: '│', left: '╰', right: '╯', dash: '─', tee: '┬'}
	asciiGlyphs   = glyphs{bar: '|', left: '\\', right: '/', dash: '-', tee: '+'}
)

var unicodeOverride *bool

// SetUnicode forces Unicode or ASCII glyphs regardless of the locale.
func SetUnicode(v bool) { unicodeOverride = &v }

// ResetUnicode reverts to locale detection.
func ResetUnicode() { unicodeOverride = nil }

func activeGlyphs() glyphs {
	if useUnicode() {
		return unicodeGlyphs
	}
	return asciiGlyphs
}

func useUnicode() bool {
	if unicodeOverride != nil {
		return *unicodeOverride
	}
	for _, k := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := strings.ToUpper(os.Getenv(k)); v != "" {
			return strings.Contains(v, "UTF-8") || strings.Contains(v, "UTF8")
		}
	}
	return os.Getenv("WT_SESSION") != ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// cell is one positioned fragment of a diagram row. Layout works on the
// plain text; paint is applied afterwards so ANSI codes never skew the
// column math.
type cell struct {
	text   string
	center int
	paint  func(string) string
}

func row(cells ...cell) string {
	sort.Slice(cells, func(i, j int) bool {
		wi := len([]rune(cells[i].text))
		wj := len([]rune(cells[j].text))
		return cells[i].center-wi/2 < cells[j].center-wj/2
	})
	var b strings.Builder
	col := 0
	for _, c := range cells {
		w := len([]rune(c.text))
		start := c.center - w/2
		if start > col {
			b.WriteString(strings.Repeat(" ", start-col))
			col = start
		}
		b.WriteString(paint(c.paint, c.text))
		col += w
	}
	return b.String()
}

func paint(f func(string) string, s string) string {
	if f == nil {
		return s
	}
	return f(s)
}

// RenderMergeDiagram returns a multi-line diagram of a merge: both heads
// converging on the result, the bases the plan was bid against, and any
// paths still conflicted.
func RenderMergeDiagram(opts MergeDiagramOpts) string {
	g := activeGlyphs()
	var head, id, faint, alert, strong func(string) string
	if opts.Colorize {
		head, id, faint, alert, strong = ui.Green, ui.Yellow, ui.Dim, ui.Red, ui.Bold
	}

	const idW = 8
	const pad = 4
	const gap = 8
	leftW := max(len(opts.LocalLabel), idW)
	rightW := max(len(opts.OtherLabel), idW)
	leftC := pad + leftW/2
	rightC := leftC + leftW/2 + gap + rightW/2
	midC := (leftC + rightC) / 2

	result := "merge?"
	resPaint := id
	switch {
	case opts.Pending:
		result = "(pending)"
		resPaint = alert
	case opts.MergedID != "":
		result = shortID(opts.MergedID)
	}

	lines := []string{
		row(cell{opts.LocalLabel, leftC, head}, cell{opts.OtherLabel, rightC, head}),
		row(cell{string(g.bar), leftC, faint}, cell{string(g.bar), rightC, faint}),
		row(cell{shortID(opts.LocalID), leftC, id}, cell{shortID(opts.OtherID), rightC, id}),
		paint(faint, connector(leftC, midC, rightC, g)),
		row(cell{result, midC, resPaint}),
	}
	if opts.Message != "" {
		lines = append(lines, row(cell{opts.Message, midC, strong}))
	}
	if n := len(opts.UnresolvedPaths); opts.Pending && n > 0 {
		lines = append(lines, row(cell{fmt.Sprintf("(%d conflicts to resolve)", n), midC, alert}))
	}
	if base := baseLine(opts.AncestorIDs); base != "" {
		lines = append(lines, row(cell{base, midC, faint}))
	}
	lines = append(lines, conflictList(opts.UnresolvedPaths, alert, faint)...)
	return strings.Join(lines, "\n")
}

// connector draws the converging arms under the two heads, tee at the middle.
func connector(left, mid, right int, g glyphs) string {
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", left))
	b.WriteRune(g.left)
	b.WriteString(strings.Repeat(string(g.dash), mid-left-1))
	b.WriteRune(g.tee)
	b.WriteString(strings.Repeat(string(g.dash), right-mid-1))
	b.WriteRune(g.right)
	return b.String()
}

// baseLine names the ancestor heads. Several heads mean the histories
// crossed and the plan went through a bid auction.
func baseLine(ids []string) string {
	switch len(ids) {
	case 0:
		return ""
	case 1:
		return "(base: " + shortID(ids[0]) + ")"
	}
	short := make([]string, len(ids))
	for i, a := range ids {
		short[i] = shortID(a)
	}
	return "(bases: " + strings.Join(short, ", ") + "; criss-cross)"
}

// conflictList prints up to four conflicted paths, left aligned under the
// diagram, with a count for the rest.
func conflictList(paths []string, alert, faint func(string) string) []string {
	const show = 4
	var out []string
	for i, p := range paths {
		if i == show {
			out = append(out, "  "+paint(faint, fmt.Sprintf("... %d more", len(paths)-show)))
			break
		}
		out = append(out, "  "+paint(alert, "! "+p))
	}
	return out
}
