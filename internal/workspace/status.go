package workspace

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ankitiscracked/stitch/internal/dirstate"
	"github.com/ankitiscracked/stitch/internal/manifest"
)

// Status is the working copy's divergence from its first parent.
type Status struct {
	Parent    string   `json:"parent,omitempty"`
	Added     []string `json:"added"`
	Modified  []string `json:"modified"`
	Removed   []string `json:"removed"`
	Missing   []string `json:"missing"`
	Untracked []string `json:"untracked"`
}

// Status compares the working copy against the first parent snapshot.
func (ws *Workspace) Status() (*Status, error) {
	scan, err := ws.scanManifest()
	if err != nil {
		return nil, err
	}

	p1 := ws.idx.P1()
	pman := manifest.New()
	if p1 != "" {
		pman, err = ws.store.ManifestForSnapshot(p1)
		if err != nil {
			return nil, err
		}
	}

	st := &Status{Parent: p1}
	for _, f := range scan.Paths() {
		e, tracked := ws.idx.Get(f)
		if !tracked {
			st.Untracked = append(st.Untracked, f)
			continue
		}
		switch {
		case e.State == dirstate.Added || e.State == dirstate.Merged:
			st.Added = append(st.Added, f)
		case !pman.Contains(f):
			st.Added = append(st.Added, f)
		case pman.Node(f) != scan.Node(f) || pman.FlagsOf(f) != scan.FlagsOf(f):
			st.Modified = append(st.Modified, f)
		}
	}
	for _, f := range ws.idx.Paths() {
		e, _ := ws.idx.Get(f)
		if e.State == dirstate.Removed {
			st.Removed = append(st.Removed, f)
		} else if !scan.Contains(f) {
			st.Missing = append(st.Missing, f)
		}
	}
	sort.Strings(st.Removed)
	sort.Strings(st.Missing)
	return st, nil
}

// HasChanges reports whether anything tracked differs from the parent.
// Untracked files do not count.
func (s *Status) HasChanges() bool {
	return len(s.Added) > 0 || len(s.Modified) > 0 || len(s.Removed) > 0 || len(s.Missing) > 0
}

// TotalChanges returns the number of changed tracked files.
func (s *Status) TotalChanges() int {
	return len(s.Added) + len(s.Modified) + len(s.Removed) + len(s.Missing)
}

// ToJSON serializes the status.
func (s *Status) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FormatSummary returns a one-line human-readable summary.
func (s *Status) FormatSummary() string {
	if !s.HasChanges() {
		return "no changes"
	}
	return fmt.Sprintf("+%d ~%d -%d !%d",
		len(s.Added), len(s.Modified), len(s.Removed), len(s.Missing))
}
