package manifest

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ankitiscracked/stitch/internal/ignore"
)

// ScanOptions control a working-directory scan.
type ScanOptions struct {
	// Ignore filters untracked noise. Nil means default patterns only.
	Ignore *ignore.Matcher
	// CachePath enables the stat cache when non-empty.
	CachePath string
	// StateDir is the metadata directory name to skip. Defaults to ".stitch".
	StateDir string
}

// Scan walks root and builds a manifest of the files on disk. Symlinks are
// recorded with FlagLink and their target as content; executable files get
// FlagExec. Directories themselves are not entries.
func Scan(root string, opts ScanOptions) (*Manifest, error) {
	matcher := opts.Ignore
	if matcher == nil {
		matcher = ignore.NewMatcher(ignore.DefaultPatterns)
	}
	stateDir := opts.StateDir
	if stateDir == "" {
		stateDir = ".stitch"
	}

	var cache *StatCache
	if opts.CachePath != "" {
		cache = LoadStatCache(opts.CachePath)
	}

	m := New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == stateDir || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		mode := info.Mode()
		if !mode.IsRegular() && mode&os.ModeSymlink == 0 {
			// sockets, devices, fifos: not trackable
			return nil
		}

		flags := FlagsFromMode(mode)
		var id string
		if cache != nil && flags != FlagLink {
			id = cache.Lookup(rel, info)
		}
		if id == "" {
			id, err = HashFile(path)
			if err != nil {
				return err
			}
			if cache != nil && flags != FlagLink {
				cache.Update(rel, info, id)
			}
		}
		m.Set(rel, id, flags)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cache != nil {
		present := make(map[string]struct{}, m.Len())
		for _, p := range m.Paths() {
			present[p] = struct{}{}
		}
		cache.Prune(present)
		cache.Save(opts.CachePath)
	}
	return m, nil
}
