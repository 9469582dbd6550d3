// Package fuzzy scores how similar two short strings are on a 0–100 scale.
package fuzzy

import (
	"math"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Ratio returns round(100 * 2M / (len(a)+len(b))) where M is the number of
// runes a minimal diff of a and b keeps in common. Two empty strings score 0.
func Ratio(a, b string) int {
	return ratioRunes([]rune(a), []rune(b))
}

// PartialRatio scores the shorter string against every window of the longer
// one with the same length and returns the best score, so a query that
// appears inside a longer name scores 100.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	if len(short) == len(long) {
		return ratioRunes(short, long)
	}

	best := 0
	for i := 0; i+len(short) <= len(long); i++ {
		score := ratioRunes(short, long[i:i+len(short)])
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

func ratioRunes(a, b []rune) int {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	matched := commonRunes(string(a), string(b))
	return int(math.Round(100 * float64(2*matched) / float64(total)))
}

// commonRunes counts runes in the equal segments of a diff of a and b.
func commonRunes(a, b string) int {
	dmp := diffmatchpatch.New()
	// No deadline: a timed-out diff is not minimal and would under-score.
	dmp.DiffTimeout = 0

	n := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			n += utf8.RuneCountInString(d.Text)
		}
	}
	return n
}
