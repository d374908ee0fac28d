package cache

import (
	"path"
	"strings"
)

// Key joins parts into a composite cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

type keyFilter struct {
	include []string
	exclude []string
}

func (f keyFilter) allows(key string) bool {
	if matchAny(f.exclude, key) {
		return false
	}
	return len(f.include) == 0 || matchAny(f.include, key)
}

// Invalid patterns never match.
func matchAny(patterns []string, key string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, key); err == nil && ok {
			return true
		}
	}
	return false
}

func invalidPatterns(patterns []string) []string {
	var bad []string
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			bad = append(bad, p)
		}
	}
	return bad
}
