package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultPatterns are always ignored
var DefaultPatterns = []string{
	".stitch/",
	".git/",
	".svn/",
	".hg/",
	"node_modules/",
	"__pycache__/",
	".DS_Store",
	"Thumbs.db",
	"*.pyc",
	"*.pyo",
	"*.class",
	"*.o",
	"*.obj",
	"*.exe",
	"*.dll",
	"*.so",
	"*.dylib",
	"*.orig",
}

// Matcher handles .stitchignore pattern matching
type Matcher struct {
	patterns []pattern
}

type pattern struct {
	raw      string
	negated  bool
	dirOnly  bool
	anchored bool // contains a slash: match against the full relative path
	g        glob.Glob
}

// NewMatcher creates a new ignore matcher from patterns. Patterns that fail
// to compile are dropped.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		m.addPattern(p)
	}
	return m
}

// LoadFromFile loads ignore patterns from a file
func LoadFromFile(path string) (*Matcher, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMatcher(DefaultPatterns), nil
		}
		return nil, err
	}
	defer file.Close()

	patterns := append([]string{}, DefaultPatterns...)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}

	return NewMatcher(patterns), scanner.Err()
}

// LoadFromDir loads ignore patterns from .stitchignore in the given directory
func LoadFromDir(dir string) (*Matcher, error) {
	return LoadFromFile(filepath.Join(dir, ".stitchignore"))
}

func (m *Matcher) addPattern(raw string) {
	p := pattern{raw: raw}

	body := raw
	if strings.HasPrefix(body, "!") {
		p.negated = true
		body = body[1:]
	}
	if strings.HasSuffix(body, "/") {
		p.dirOnly = true
		body = strings.TrimSuffix(body, "/")
	}
	p.anchored = strings.Contains(body, "/")

	g, err := glob.Compile(body, '/')
	if err != nil {
		return
	}
	p.g = g
	m.patterns = append(m.patterns, p)
}

// matches tests one pattern against a path. Unanchored patterns (no slash)
// match the base name at any depth, like .gitignore.
func (p pattern) matches(path string) bool {
	if p.anchored {
		return p.g.Match(path)
	}
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	return p.g.Match(path)
}

// Match checks if a path should be ignored. The path must be slash-separated
// and relative to the workspace root. Later patterns override earlier ones,
// so negations work the way .gitignore users expect.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	ignored := false
	for _, p := range m.patterns {
		var matched bool
		if p.dirOnly {
			// A directory pattern claims the directory itself and anything
			// beneath it. The ancestor check matters when manifest paths are
			// matched without a walk that would have skipped the subtree.
			matched = isDir && p.matches(path)
			if !matched {
				for _, anc := range ancestorDirs(path) {
					if p.matches(anc) {
						matched = true
						break
					}
				}
			}
		} else {
			matched = p.matches(path)
		}
		if matched {
			ignored = !p.negated
		}
	}

	return ignored
}

func ancestorDirs(path string) []string {
	var dirs []string
	for i, c := range path {
		if c == '/' {
			dirs = append(dirs, path[:i])
		}
	}
	return dirs
}

// ShouldInclude returns true if the path should be included (not ignored)
func (m *Matcher) ShouldInclude(path string, isDir bool) bool {
	return !m.Match(path, isDir)
}
