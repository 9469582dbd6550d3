// Package normalize holds the two independent name passes: the query key used
// for fuzzy comparison, and the display name shown to users.
package normalize

import (
	"regexp"
	"strings"
)

// synonyms bridge known gaps between how people ask and how the calendar
// labels an event. Applied after lowercasing.
var synonyms = strings.NewReplacer(
	"graduation", "commencement ceremony",
)

var (
	dayMarker    = regexp.MustCompile(`\bDay \d+\b`)
	digitInParen = regexp.MustCompile(`\s?\(\d\)`)
	spaces       = regexp.MustCompile(`\s+`)
)

// QueryKey lowercases s, applies the synonym table and drops everything that
// is not an ASCII letter or digit.
func QueryKey(s string) string {
	s = synonyms.Replace(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DisplayName strips the "Day N" suffixes added to disambiguate index keys
// and parenthesized single digits. Only for output, never for matching.
func DisplayName(s string) string {
	for {
		next := digitInParen.ReplaceAllString(dayMarker.ReplaceAllString(s, ""), "")
		next = strings.TrimSpace(spaces.ReplaceAllString(next, " "))
		if next == s {
			return s
		}
		s = next
	}
}

// JoinNames renders names as an English list: "A", "A and B", "A, B, and C".
func JoinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
