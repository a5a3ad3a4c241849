package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ankitiscracked/stitch/internal/store"
)

const authorFileName = "author.json"

// Author is the snapshot author identity.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// IsEmpty returns true if both name and email are unset.
func (a *Author) IsEmpty() bool {
	return a == nil || (a.Name == "" && a.Email == "")
}

// LoadAuthorAt resolves author identity for a workspace root: the
// workspace-level file overrides the global one.
func LoadAuthorAt(root string) (*Author, error) {
	if a, err := loadAuthorFrom(filepath.Join(root, StateDirName, authorFileName)); err == nil && !a.IsEmpty() {
		return a, nil
	}
	return LoadGlobalAuthor()
}

// LoadGlobalAuthor reads the per-user author identity.
func LoadGlobalAuthor() (*Author, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return nil, err
	}
	return loadAuthorFrom(filepath.Join(dir, authorFileName))
}

// SaveGlobalAuthor writes the per-user author identity.
func SaveGlobalAuthor(a *Author) error {
	dir, err := GlobalConfigDir()
	if err != nil {
		return err
	}
	return saveAuthorTo(filepath.Join(dir, authorFileName), a)
}

// SaveAuthorAt writes the workspace-level author identity.
func SaveAuthorAt(root string, a *Author) error {
	return saveAuthorTo(filepath.Join(root, StateDirName, authorFileName), a)
}

func loadAuthorFrom(path string) (*Author, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Author{}, nil
		}
		return nil, fmt.Errorf("failed to read author config: %w", err)
	}
	var a Author
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse author config: %w", err)
	}
	return &a, nil
}

func saveAuthorTo(path string, a *Author) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal author config: %w", err)
	}
	return store.AtomicWriteFile(path, data, 0644)
}
