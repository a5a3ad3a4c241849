package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatchPatternsBasics(t *testing.T) {
	m := NewMatcher([]string{
		"*.log",
		"foo*",
		"exact",
		"dir/",
	})

	cases := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{path: "error.log", want: true},
		{path: "deep/nested/error.log", want: true}, // unanchored, matches base name
		{path: "foo", want: true},
		{path: "foo.txt", want: true},
		{path: "exact", want: true},
		{path: "dir", isDir: true, want: true},
		{path: "dir/file.txt", want: true}, // under an ignored directory
		{path: "nope", want: false},
	}

	for _, c := range cases {
		if got := m.Match(c.path, c.isDir); got != c.want {
			t.Fatalf("Match(%q, %v) = %v, want %v", c.path, c.isDir, got, c.want)
		}
	}
}

func TestMatchAnchoredPatterns(t *testing.T) {
	m := NewMatcher([]string{"build/out.txt"})

	if !m.Match("build/out.txt", false) {
		t.Fatalf("expected anchored pattern to match the full relative path")
	}
	if m.Match("other/build/out.txt", false) {
		t.Fatalf("anchored pattern should not match at a deeper prefix")
	}
	if m.Match("out.txt", false) {
		t.Fatalf("anchored pattern should not match the bare base name")
	}
}

func TestMatchNegation(t *testing.T) {
	m := NewMatcher([]string{
		"*.log",
		"!keep.log",
	})

	if !m.Match("error.log", false) {
		t.Fatalf("expected error.log to be ignored")
	}
	if m.Match("keep.log", false) {
		t.Fatalf("expected keep.log to be included due to negation")
	}
}

func TestShouldInclude(t *testing.T) {
	m := NewMatcher([]string{"*.tmp"})

	if m.ShouldInclude("scratch.tmp", false) {
		t.Fatalf("expected scratch.tmp to be excluded")
	}
	if !m.ShouldInclude("main.go", false) {
		t.Fatalf("expected main.go to be included")
	}
}

func TestLoadFromDirIncludesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".stitchignore")
	if err := os.WriteFile(path, []byte("# comment\ncustom.log\n"), 0644); err != nil {
		t.Fatalf("write .stitchignore: %v", err)
	}

	m, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}

	if !m.Match("node_modules", true) {
		t.Fatalf("expected default pattern to match node_modules dir")
	}
	if !m.Match(".stitch", true) {
		t.Fatalf("expected the state dir to be ignored by default")
	}
	if !m.Match("custom.log", false) {
		t.Fatalf("expected custom pattern to match")
	}
}

func TestLoadFromDirMissingFileUsesDefaults(t *testing.T) {
	m, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	if !m.Match("a.pyc", false) {
		t.Fatalf("expected default *.pyc pattern")
	}
	if m.Match("main.go", false) {
		t.Fatalf("expected main.go to pass")
	}
}
