package tree

import (
	"os"
	"path/filepath"

	"github.com/ankitiscracked/stitch/internal/manifest"
)

// WriteFile materializes one tracked file in the working copy: parent
// directories are created, symlink entries become links, and the executable
// bit follows the flags. An existing file or link at the path is replaced.
func WriteFile(root, path string, data []byte, flags manifest.Flags) error {
	abs := filepath.Join(root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	if flags == manifest.FlagLink {
		if _, err := os.Lstat(abs); err == nil {
			if err := os.RemoveAll(abs); err != nil {
				return err
			}
		}
		return os.Symlink(string(data), abs)
	}
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(abs); err != nil {
			return err
		}
	}
	mode := os.FileMode(0644)
	if flags == manifest.FlagExec {
		mode = 0755
	}
	if err := os.WriteFile(abs, data, mode); err != nil {
		return err
	}
	// WriteFile leaves the old mode on an existing file; force it.
	return os.Chmod(abs, mode)
}

// ApplyFlags adjusts an existing working file's flags without rewriting its
// content. Turning a regular file into a symlink (or back) rewrites it from
// the given content getter.
func ApplyFlags(root, path string, flags manifest.Flags, content func() ([]byte, error)) error {
	abs := filepath.Join(root, filepath.FromSlash(path))
	info, err := os.Lstat(abs)
	if err != nil {
		return err
	}
	isLink := info.Mode()&os.ModeSymlink != 0
	if (flags == manifest.FlagLink) != isLink {
		data, err := content()
		if err != nil {
			return err
		}
		return WriteFile(root, path, data, flags)
	}
	if flags == manifest.FlagLink {
		return nil
	}
	mode := os.FileMode(0644)
	if flags == manifest.FlagExec {
		mode = 0755
	}
	return os.Chmod(abs, mode)
}

// RemoveFile deletes a working file if it exists and prunes any parent
// directories the deletion emptied.
func RemoveFile(root, path string) error {
	abs := filepath.Join(root, filepath.FromSlash(path))
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	PruneEmptyDirs(root, path)
	return nil
}

// PruneEmptyDirs removes empty parent directories of path up to root.
func PruneEmptyDirs(root, path string) {
	dir := filepath.Dir(filepath.Join(root, filepath.FromSlash(path)))
	for dir != root {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
}

// Exists reports whether anything (file, link, directory) sits at a working
// path.
func Exists(root, path string) bool {
	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(path)))
	return err == nil
}
