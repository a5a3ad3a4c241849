package dag

import (
	"strings"
	"testing"
)

func TestRenderDiagramUnicode(t *testing.T) {
	SetUnicode(true)
	defer ResetUnicode()

	out := RenderMergeDiagram(MergeDiagramOpts{
		LocalID:     "1111111111aaaaaaaa",
		OtherID:     "2222222222bbbbbbbb",
		AncestorIDs: []string{"3333333333cccccccc"},
		MergedID:    "4444444444dddddddd",
		LocalLabel:  "local",
		OtherLabel:  "other",
		Message:     "merged feature",
	})

	for _, want := range []string{"local", "other", "11111111", "22222222", "44444444", "merged feature", "(base: 33333333)", "╰", "┬", "╯", "│"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "(pending)") {
		t.Fatalf("completed merge should not read pending:\n%s", out)
	}
}

func TestRenderDiagramASCII(t *testing.T) {
	SetUnicode(false)
	defer ResetUnicode()

	out := RenderMergeDiagram(MergeDiagramOpts{
		LocalID: "1111111111", OtherID: "2222222222",
		LocalLabel: "local", OtherLabel: "other",
	})
	for _, want := range []string{"\\", "/", "+", "|"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing ASCII glyph %q in:\n%s", want, out)
		}
	}
	for _, r := range out {
		if r > 127 {
			t.Fatalf("non-ASCII rune %q in ASCII mode:\n%s", r, out)
		}
	}
}

func TestRenderDiagramDryRun(t *testing.T) {
	SetUnicode(true)
	defer ResetUnicode()

	out := RenderMergeDiagram(MergeDiagramOpts{
		LocalID: "1111111111", OtherID: "2222222222",
		LocalLabel: "local", OtherLabel: "other",
	})
	if !strings.Contains(out, "merge?") {
		t.Fatalf("dry run should show a placeholder result:\n%s", out)
	}
}

func TestRenderDiagramPendingListsConflicts(t *testing.T) {
	SetUnicode(true)
	defer ResetUnicode()

	out := RenderMergeDiagram(MergeDiagramOpts{
		LocalID: "1111111111", OtherID: "2222222222",
		LocalLabel: "local", OtherLabel: "other",
		Pending:         true,
		UnresolvedPaths: []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt"},
	})

	for _, want := range []string{"(pending)", "(6 conflicts to resolve)", "! a.txt", "! d.txt", "... 2 more"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	// only the first four paths are listed
	if strings.Contains(out, "! e.txt") {
		t.Fatalf("overflow paths should be summarized, not listed:\n%s", out)
	}
}

func TestRenderDiagramCrissCrossBases(t *testing.T) {
	SetUnicode(true)
	defer ResetUnicode()

	out := RenderMergeDiagram(MergeDiagramOpts{
		LocalID: "1111111111", OtherID: "2222222222",
		AncestorIDs: []string{"3333333333", "4444444444"},
		LocalLabel:  "local", OtherLabel: "other",
	})
	if !strings.Contains(out, "(bases: 33333333, 44444444; criss-cross)") {
		t.Fatalf("criss-cross bases not rendered:\n%s", out)
	}
}

func TestRenderDiagramNoBase(t *testing.T) {
	SetUnicode(true)
	defer ResetUnicode()

	out := RenderMergeDiagram(MergeDiagramOpts{
		LocalID: "1111111111", OtherID: "2222222222",
		LocalLabel: "local", OtherLabel: "other",
	})
	if strings.Contains(out, "base") {
		t.Fatalf("no ancestor given, no base line expected:\n%s", out)
	}
}

// Colors must not shift the layout: stripping escape codes from the
// colorized output yields exactly the plain rendering.
func TestRenderDiagramColorizedAlignment(t *testing.T) {
	SetUnicode(true)
	defer ResetUnicode()

	opts := MergeDiagramOpts{
		LocalID: "1111111111", OtherID: "2222222222",
		AncestorIDs: []string{"3333333333"},
		LocalLabel:  "local", OtherLabel: "other",
		Pending:         true,
		UnresolvedPaths: []string{"a.txt"},
	}
	plain := RenderMergeDiagram(opts)
	opts.Colorize = true
	colored := RenderMergeDiagram(opts)

	if stripANSI(colored) != plain {
		t.Fatalf("colorized layout drifted:\nplain:\n%s\ncolored (stripped):\n%s", plain, stripANSI(colored))
	}
}

func TestConnectorTeeCentered(t *testing.T) {
	line := connector(4, 14, 24, unicodeGlyphs)
	var left, tee, right int
	for i, r := range []rune(line) {
		switch r {
		case '╰':
			left = i
		case '┬':
			tee = i
		case '╯':
			right = i
		}
	}
	if tee-left != right-tee {
		t.Fatalf("tee off center: left=%d tee=%d right=%d in %q", left, tee, right, line)
	}
}

func TestShortID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"abc", "abc"},
		{"abcdefgh", "abcdefgh"},
		{"abcdefghij", "abcdefgh"},
	}
	for _, c := range cases {
		if got := shortID(c.in); got != c.want {
			t.Fatalf("shortID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
