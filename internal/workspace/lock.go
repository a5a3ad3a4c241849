package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/ankitiscracked/stitch/internal/config"
)

const (
	wcLockFile    = "wc.lock"
	storeLockFile = "store.lock"
)

// ErrLocked means another stitch process holds the workspace.
var ErrLocked = errors.New("workspace is locked by another process")

// LockFile is a held flock. Advisory, released automatically if the process
// exits.
type LockFile struct {
	files []*os.File
}

func acquireFlock(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", path, err)
	}
	return f, nil
}

// Lock takes the working-copy and store locks for a mutating operation.
// Both are non-blocking: a held lock fails fast with ErrLocked rather than
// stalling behind another process.
func (ws *Workspace) Lock() (*LockFile, error) {
	dir := config.StateDir(ws.root)
	l := &LockFile{}
	for _, name := range []string{wcLockFile, storeLockFile} {
		f, err := acquireFlock(filepath.Join(dir, name))
		if err != nil {
			l.Release()
			return nil, err
		}
		l.files = append(l.files, f)
	}
	return l, nil
}

// Release drops the held locks. Safe on nil.
func (l *LockFile) Release() error {
	if l == nil {
		return nil
	}
	var first error
	// release in reverse acquisition order
	for i := len(l.files) - 1; i >= 0; i-- {
		f := l.files[i]
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files = nil
	return first
}
