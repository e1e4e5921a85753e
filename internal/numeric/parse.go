// Package numeric parses human-formatted counts such as "1,234", "2.5K" or
// "10,000+" into integers.
package numeric

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// groupSepRe matches a digit-group separator sitting between a digit and a
// three-digit group: comma, space, NBSP, narrow NBSP, thin space, apostrophe.
var groupSepRe = regexp.MustCompile(`(\d)[,' \x{00A0}\x{202F}\x{2009}](\d{3})`)

// tokenRe captures the first number and an optional magnitude suffix. The
// suffix only counts when it is not the start of a word ("2 members" is 2).
var tokenRe = regexp.MustCompile(`(\d+(?:\.\d+)?)(?:\s?([kKmM])(?:[^\p{L}]|$))?`)

var multipliers = map[string]float64{
	"k": 1_000,
	"m": 1_000_000,
}

// Parse extracts the first count in text. It returns false when no numeric
// token is present or the value does not fit in an int64.
func Parse(text string) (int64, bool) {
	s := strings.TrimSpace(norm.NFKC.String(text))
	if s == "" {
		return 0, false
	}

	// Separators can chain ("1,234,567"); non-overlapping replacement needs
	// a few passes.
	for {
		next := groupSepRe.ReplaceAllString(s, "$1$2")
		if next == s {
			break
		}
		s = next
	}

	m := tokenRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if mul, ok := multipliers[strings.ToLower(m[2])]; ok {
		f *= mul
	}

	f = math.Round(f)
	if math.IsInf(f, 0) || math.IsNaN(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Ptr parses text and returns a pointer to the value, or nil.
func Ptr(text string) *int64 {
	v, ok := Parse(text)
	if !ok {
		return nil
	}
	return &v
}
