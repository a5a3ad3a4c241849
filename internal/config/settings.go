package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// only the braced form is expanded; bare $words are merge tool placeholders
var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}

const settingsFileName = "settings.yaml"

// Case sensitivity modes for the collision check during updates.
const (
	CaseAuto        = "auto"
	CaseSensitive   = "sensitive"
	CaseInsensitive = "insensitive"
)

// Settings is the user-tunable behavior, read from .stitch/settings.yaml.
// String values may reference environment variables as ${VAR}.
type Settings struct {
	// MergeTool is an external command template run on conflicted files,
	// with $local, $ancestor, $other and $output placeholders. Empty means
	// the built-in merge with conflict markers.
	MergeTool string `yaml:"merge_tool"`
	// FollowCopies enables rename and copy tracing during merges.
	FollowCopies *bool `yaml:"follow_copies"`
	// Workers bounds the parallelism of working-copy writes. Zero means one
	// per CPU.
	Workers int `yaml:"workers"`
	// CaseSensitivity is auto, sensitive or insensitive. Auto probes the
	// working copy's filesystem.
	CaseSensitivity string `yaml:"case_sensitivity"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() *Settings {
	follow := true
	return &Settings{
		FollowCopies:    &follow,
		CaseSensitivity: CaseAuto,
	}
}

// LoadSettingsAt reads and validates the settings for a workspace root. A
// missing file yields the defaults.
func LoadSettingsAt(root string) (*Settings, error) {
	path := filepath.Join(root, StateDirName, settingsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.MergeTool = expandEnv(s.MergeTool)
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// SaveSettingsAt writes the settings file for a workspace root.
func SaveSettingsAt(root string, s *Settings) error {
	if err := s.validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	path := filepath.Join(root, StateDirName, settingsFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CopiesEnabled reports whether rename tracing is on.
func (s *Settings) CopiesEnabled() bool {
	return s.FollowCopies == nil || *s.FollowCopies
}

func (s *Settings) validate() error {
	if s.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Workers)
	}
	switch s.CaseSensitivity {
	case "", CaseAuto, CaseSensitive, CaseInsensitive:
	default:
		return fmt.Errorf("unknown case_sensitivity %q", s.CaseSensitivity)
	}
	return nil
}
