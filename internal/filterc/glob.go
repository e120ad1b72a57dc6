package filterc

import (
	"regexp"
	"strings"
)

// globToRegexp converts a filter GLOB pattern into a regular expression
// matching spec.md 4.6's semantics: `*` matches within a path segment
// (never crossing `/`), `**` crosses segment boundaries, `?` matches any
// single non-separator rune.
func globToRegexp(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteByte('^')

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				sb.WriteString(".*")
				i++
				continue
			}
			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteByte('$')
	return regexp.MustCompile(sb.String())
}

// MatchGlob reports whether s matches a GLOB pattern under spec.md 4.6's
// path-segment-aware semantics.
func MatchGlob(pattern, s string) bool {
	return globToRegexp(pattern).MatchString(s)
}

// globToLikePattern widens a GLOB pattern into a SQL LIKE pattern that is
// a safe superset of the GLOB match: `*`, `**`, and `?` all become `%`,
// and literal `%`/`_` are escaped with `\`. Rows the
// LIKE pre-filter lets through must still be checked with MatchGlob for
// exactness, since LIKE cannot express the segment-crossing distinction
// between `*` and `**`.
func globToLikePattern(pattern string) string {
	var sb strings.Builder
	for _, c := range pattern {
		switch c {
		case '*', '?':
			sb.WriteByte('%')
		case '%', '_':
			sb.WriteByte('\\')
			sb.WriteRune(c)
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}
