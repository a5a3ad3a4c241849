// Package workspace ties the engine together. A Workspace owns one working
// copy: its index, settings, conflict state, and snapshot store, and exposes
// the high-level operations the CLI calls (snapshot, update, merge, resolve,
// abort).
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ankitiscracked/stitch/internal/config"
	"github.com/ankitiscracked/stitch/internal/dirstate"
	"github.com/ankitiscracked/stitch/internal/filemerge"
	"github.com/ankitiscracked/stitch/internal/ignore"
	"github.com/ankitiscracked/stitch/internal/manifest"
	"github.com/ankitiscracked/stitch/internal/mergestate"
	"github.com/ankitiscracked/stitch/internal/store"
	"github.com/ankitiscracked/stitch/internal/tree"
)

// ErrUnresolved means an operation cannot proceed while merge conflicts are
// outstanding.
var ErrUnresolved = errors.New("unresolved merge conflicts")

const statCacheFileName = "statcache.json"

// Workspace is an open working copy.
type Workspace struct {
	root     string
	store    *store.Store
	idx      *dirstate.Dirstate
	settings *config.Settings
	logger   *slog.Logger
}

// Open loads the workspace enclosing the current directory.
func Open() (*Workspace, error) {
	root, err := config.FindRoot()
	if err != nil {
		return nil, err
	}
	return OpenAt(root)
}

// OpenAt loads the workspace rooted at root.
func OpenAt(root string) (*Workspace, error) {
	if !config.IsInitialized(root) {
		return nil, fmt.Errorf("%s is not a stitch workspace", root)
	}
	idx, err := dirstate.Load(root)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadSettingsAt(root)
	if err != nil {
		return nil, err
	}
	return &Workspace{
		root:     root,
		store:    store.OpenAt(root),
		idx:      idx,
		settings: settings,
		logger:   slog.Default(),
	}, nil
}

// Init creates a new workspace at root and returns it opened.
func Init(root string) (*Workspace, error) {
	ws := &config.Workspace{
		WorkspaceID: uuid.NewString(),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := config.InitAt(root, ws); err != nil {
		return nil, err
	}
	s := store.OpenAt(root)
	if err := s.EnsureDirs(); err != nil {
		return nil, err
	}
	return OpenAt(root)
}

// Root returns the working copy root.
func (ws *Workspace) Root() string { return ws.root }

// Store returns the snapshot store.
func (ws *Workspace) Store() *store.Store { return ws.store }

// Index returns the working-copy index.
func (ws *Workspace) Index() *dirstate.Dirstate { return ws.idx }

// Settings returns the loaded user settings.
func (ws *Workspace) Settings() *config.Settings { return ws.settings }

// SetLogger replaces the workspace logger.
func (ws *Workspace) SetLogger(l *slog.Logger) {
	if l != nil {
		ws.logger = l
	}
}

// scanManifest walks the working copy into a manifest, honoring the
// .stitchignore file and the stat cache.
func (ws *Workspace) scanManifest() (*manifest.Manifest, error) {
	matcher, err := ignore.LoadFromDir(ws.root)
	if err != nil {
		return nil, err
	}
	return manifest.Scan(ws.root, manifest.ScanOptions{
		Ignore:    matcher,
		CachePath: filepath.Join(config.StateDir(ws.root), statCacheFileName),
	})
}

// workingContext builds the working copy's side of a merge.
func (ws *Workspace) workingContext() (*tree.Context, error) {
	man, err := ws.scanManifest()
	if err != nil {
		return nil, err
	}
	return tree.Working(ws.store, ws.root, man, ws.idx.Parents(), ws.idx.Copies()), nil
}

// mergeState opens the persistent conflict state for this workspace.
func (ws *Workspace) mergeState() (*mergestate.Store, error) {
	return mergestate.Open(ws.root, ws.idx.Parents())
}

// merger returns the configured file merger: an external tool when set,
// otherwise the built-in three-way merge.
func (ws *Workspace) merger() filemerge.Merger {
	if ws.settings.MergeTool != "" {
		return filemerge.Tool{Command: ws.settings.MergeTool}
	}
	return filemerge.Internal{}
}

// caseFold reports whether the collision check should run, per settings and,
// in auto mode, a probe of the working copy's filesystem.
func (ws *Workspace) caseFold() bool {
	switch ws.settings.CaseSensitivity {
	case config.CaseSensitive:
		return false
	case config.CaseInsensitive:
		return true
	}
	return fsFoldsCase(config.StateDir(ws.root))
}

// fsFoldsCase probes a directory for case-insensitive name lookup.
func fsFoldsCase(dir string) bool {
	f, err := os.CreateTemp(dir, "CaseProbe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	defer os.Remove(name)

	base := filepath.Base(name)
	flipped := filepath.Join(dir, "cASEpROBE-"+base[len("CaseProbe-"):])
	_, err = os.Stat(flipped)
	return err == nil
}
