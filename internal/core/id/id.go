// Package id generates client-side identifiers.
// Local IDs are stable before any server round-trip and serve as the
// idempotency key for sync.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Local ID prefixes per record kind.
const (
	PrefixOrder   = "order"
	PrefixPicking = "picking"
	PrefixDDT     = "ddt"
	PrefixLine    = "line"
	PrefixMove    = "move"
)

// New generates a new UUIDv7 (time-ordered UUID).
func New() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return id
}

// NewLocal returns "<prefix>_<uuidv7>". Local IDs sort by creation time
// within a prefix.
func NewLocal(prefix string) string {
	return prefix + "_" + New().String()
}

// PrefixOf returns the kind prefix of a local ID, or "" when it has none.
func PrefixOf(localID string) string {
	prefix, _, ok := strings.Cut(localID, "_")
	if !ok {
		return ""
	}
	return prefix
}

// IsLocal reports whether s looks like a local ID with the given prefix.
func IsLocal(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
