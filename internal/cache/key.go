package cache

import (
	"net/url"
	"strings"
)

// Key is an ordered tuple of identifiers, e.g. {"users", "42"}. A prefix
// relationship between two keys implies containment for invalidation:
// invalidating {"users"} also reaches {"users", "42"} and below.
type Key []string

// K is shorthand for building a Key.
func K(parts ...string) Key {
	return Key(parts)
}

// String renders the canonical map key. Segments are escaped so an
// identifier containing the separator cannot collide with a deeper key.
func (k Key) String() string {
	escaped := make([]string, len(k))
	for i, part := range k {
		escaped[i] = url.PathEscape(part)
	}
	return strings.Join(escaped, "/")
}

// HasPrefix reports whether p is a segment-wise prefix of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i, part := range p {
		if k[i] != part {
			return false
		}
	}
	return true
}
