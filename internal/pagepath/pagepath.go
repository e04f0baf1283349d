// Package pagepath contains the pure path rules shared by every component
// that touches a page location: validation, normalization and the derived
// content hash used as the render cache key.
package pagepath

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrIllegalPath is returned for paths containing characters that would
// break tree construction or the on-disk cache layout.
var ErrIllegalPath = errors.New("page path contains illegal characters")

// Validate rejects paths containing dots, whitespace, backslashes or
// empty segments. The empty path itself is legal; it denotes the root.
func Validate(path string) error {
	if strings.Contains(path, ".") ||
		strings.ContainsAny(path, " \t\n\r") ||
		strings.Contains(path, `\`) ||
		strings.Contains(path, "//") {
		return ErrIllegalPath
	}
	return nil
}

// Normalize strips a single leading and trailing slash. It does not
// collapse interior slashes; Validate has already rejected those.
func Normalize(path string) string {
	path = strings.TrimSuffix(path, "/")
	path = strings.TrimPrefix(path, "/")
	return path
}

// Hash derives the stable content-addressed identity of a page from its
// path, locale and private namespace. The same derivation backs both the
// persisted hash column and the cache key, so it must never be copied
// across a move; always recompute.
func Hash(path, locale, privateNS string) string {
	h := sha1.Sum([]byte(path + "%" + locale + "%" + privateNS))
	return hex.EncodeToString(h[:])
}

// Segments splits a normalized path into its ordered segments, skipping
// empty parts so a root-level path yields no folder segments.
func Segments(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LastSegment returns the final segment of a path, or the path itself
// when it has no separators.
func LastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ParentPath returns everything before the final segment, or "" for a
// root-level path.
func ParentPath(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

// JoinUnder places name directly under base, treating "" as the root.
func JoinUnder(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
