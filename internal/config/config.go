// Package config locates the workspace root and manages the small pieces of
// state that live under .stitch/ but are not part of the snapshot store:
// workspace identity, user settings, author identity, and the pending merge
// parents of an in-progress merge.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ankitiscracked/stitch/internal/store"
)

const (
	// StateDirName is the per-workspace state directory.
	StateDirName   = ".stitch"
	configFileName = "config.json"
)

// ErrNotFound means no enclosing directory carries a .stitch/config.json.
var ErrNotFound = errors.New("not inside a stitch workspace")

// Workspace is the identity record stored in .stitch/config.json.
type Workspace struct {
	WorkspaceID string `json:"workspace_id"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// FindRoot walks up from the current directory to the workspace root.
func FindRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindRootFrom(cwd)
}

// FindRootFrom walks up from start to the nearest directory containing
// .stitch/config.json.
func FindRootFrom(start string) (string, error) {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, StateDirName, configFileName)); err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// StateDir returns the .stitch directory for a workspace root.
func StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

// LoadAt reads the workspace identity at a root.
func LoadAt(root string) (*Workspace, error) {
	data, err := os.ReadFile(filepath.Join(root, StateDirName, configFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace config: %w", err)
	}
	var ws Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to parse workspace config: %w", err)
	}
	return &ws, nil
}

// SaveAt writes the workspace identity at a root.
func SaveAt(root string, ws *Workspace) error {
	dir := StateDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workspace config: %w", err)
	}
	return store.AtomicWriteFile(filepath.Join(dir, configFileName), data, 0644)
}

// InitAt creates the state directory and identity record for a new
// workspace. Fails if the directory already carries one.
func InitAt(root string, ws *Workspace) error {
	dir := StateDir(root)
	if _, err := os.Stat(filepath.Join(dir, configFileName)); err == nil {
		return fmt.Errorf("already initialized: %s exists", dir)
	}
	return SaveAt(root, ws)
}

// IsInitialized reports whether root is a workspace root.
func IsInitialized(root string) bool {
	_, err := os.Stat(filepath.Join(root, StateDirName, configFileName))
	return err == nil
}

// GlobalConfigDir returns the per-user configuration directory.
func GlobalConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "stitch"), nil
}
