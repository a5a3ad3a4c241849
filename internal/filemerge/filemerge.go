// Package filemerge merges the three versions of one file's content. The
// built-in merger is a diff3 text merge; an external command can be
// substituted through the settings file.
package filemerge

import (
	"bytes"
	"fmt"
	"io"

	"github.com/epiclabs-io/diff3"
)

// Labels name the two sides in conflict markers.
type Labels struct {
	Local string
	Other string
}

// DefaultLabels returns the marker labels used when the caller has no better
// names for the sides.
func DefaultLabels() Labels {
	return Labels{Local: "local", Other: "other"}
}

// Merger merges a local, ancestor, and other version of one file.
//
// The returned bytes are what belongs in the working file: the clean merge
// when conflicts is false, or marker-annotated content (or the untouched
// local version, for binaries) when conflicts is true.
type Merger interface {
	Merge(local, ancestor, other []byte, labels Labels) (merged []byte, conflicts bool, err error)
}

// Internal is the built-in three-way text merger.
type Internal struct{}

// Merge runs a diff3 merge. Binary content (any side containing a NUL byte)
// is never text-merged: the local version is kept and the merge reports a
// conflict for the caller to track.
func (Internal) Merge(local, ancestor, other []byte, labels Labels) ([]byte, bool, error) {
	if IsBinary(local) || IsBinary(ancestor) || IsBinary(other) {
		return local, true, nil
	}

	// diff3.Merge(a=local, o=ancestor, b=other)
	result, err := diff3.Merge(
		bytes.NewReader(local),
		bytes.NewReader(ancestor),
		bytes.NewReader(other),
		true, labels.Local, labels.Other,
	)
	if err != nil {
		return nil, false, fmt.Errorf("three-way merge failed: %w", err)
	}

	merged, err := io.ReadAll(result.Result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read merge result: %w", err)
	}
	return merged, result.Conflicts, nil
}

// IsBinary reports whether content looks binary (contains a NUL byte).
func IsBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}
