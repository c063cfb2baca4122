// Package patterns converts comma-separated glob-like path patterns into
// anchored case-insensitive regular expressions, shared by the search
// engine's include/exclude filtering and the indexer's exclusion option.
package patterns

import (
	"log/slog"
	"regexp"
	"strings"
)

// Set holds compiled include or exclude patterns. A nil or empty Set
// matches nothing; callers decide what that means (fail-open for exclude,
// fail-open-to-include for include).
type Set struct {
	patterns []*regexp.Regexp
}

// Compile parses a comma-separated list of glob-like patterns. Each pattern
// becomes an anchored, case-insensitive regular expression where `*`
// matches any run of characters and `?` matches a single character.
// Invalid patterns are logged and skipped rather than aborting the whole
// filter.
func Compile(csv string) *Set {
	s := &Set{}
	for _, raw := range strings.Split(csv, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		re, err := regexp.Compile(globToRegexp(raw))
		if err != nil {
			slog.Warn("ignoring invalid path pattern", "pattern", raw, "error", err)
			continue
		}
		s.patterns = append(s.patterns, re)
	}
	return s
}

// Empty reports whether the set compiled to zero usable patterns.
func (s *Set) Empty() bool {
	return s == nil || len(s.patterns) == 0
}

// Match reports whether the path matches any pattern in the set.
func (s *Set) Match(path string) bool {
	if s == nil {
		return false
	}
	for _, re := range s.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// globToRegexp converts one glob pattern to an anchored case-insensitive
// regular expression source string.
func globToRegexp(glob string) string {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
