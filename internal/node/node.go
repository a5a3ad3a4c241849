// Package node defines the 160-bit content identifiers used throughout the
// store: 40-char lowercase hex SHA-1 digests.
package node

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// HexLen is the length of a content id in its hex form.
const HexLen = 40

// Zero is the null id: it identifies "no content", e.g. the ancestor side of
// a file that was created independently on both sides of a merge.
const Zero = "0000000000000000000000000000000000000000"

// Hash returns the content id for a blob of bytes.
func Hash(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// HashString hashes a string. Used for stash keys derived from paths.
func HashString(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// IsValid reports whether s looks like a content id.
func IsValid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// IsZero reports whether s is the null id. The empty string counts: callers
// that never had an ancestor leave the field blank.
func IsZero(s string) bool {
	return s == "" || s == Zero
}

// Short returns the conventional 12-char abbreviation for display.
func Short(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12]
}

// ValidPrefix reports whether s could be a prefix of a content id.
func ValidPrefix(s string) bool {
	if s == "" || len(s) > HexLen {
		return false
	}
	return strings.IndexFunc(s, func(c rune) bool {
		return (c < '0' || c > '9') && (c < 'a' || c > 'f')
	}) == -1
}
