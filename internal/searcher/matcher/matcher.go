// Package matcher provides the predicates substring lookup filters
// executable names with.
package matcher

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	apperrors "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/errors"
)

// Matcher reports whether an executable name is a candidate.
type Matcher interface {
	Match(name string) bool
}

// Func adapts a plain function to Matcher.
type Func func(name string) bool

func (f Func) Match(name string) bool { return f(name) }

// Substring matches names containing s anywhere, case-sensitively. It is the
// default matcher of substring lookup.
func Substring(s string) Matcher {
	return Func(func(name string) bool {
		return strings.Contains(name, s)
	})
}

// Prefix matches names starting with s.
func Prefix(s string) Matcher {
	return Func(func(name string) bool {
		return strings.HasPrefix(name, s)
	})
}

// Regexp matches names in which pattern finds a match anywhere. A malformed
// pattern fails here, before any scan.
func Regexp(pattern string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", apperrors.ErrPattern, pattern, err)
	}
	return Func(re.MatchString), nil
}

// Fuzzy matches names within maxDistance edits of s.
func Fuzzy(s string, maxDistance int) Matcher {
	want := utf8.RuneCountInString(s)
	return Func(func(name string) bool {
		if abs(utf8.RuneCountInString(name)-want) > maxDistance {
			return false
		}
		return levenshtein.ComputeDistance(name, s) <= maxDistance
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Mode names a matcher family selectable from the CLI and HTTP API.
type Mode string

const (
	ModeExact     Mode = "exact"
	ModeSubstring Mode = "substring"
	ModeRegexp    Mode = "regex"
	ModeFuzzy     Mode = "fuzzy"
)

// DefaultFuzzyDistance is the edit distance ModeFuzzy tolerates.
const DefaultFuzzyDistance = 2

// ForMode builds the matcher of a non-exact mode for query q.
func ForMode(mode Mode, q string) (Matcher, error) {
	switch mode {
	case ModeSubstring, "":
		return Substring(q), nil
	case ModeRegexp:
		return Regexp(q)
	case ModeFuzzy:
		return Fuzzy(q, DefaultFuzzyDistance), nil
	default:
		return nil, fmt.Errorf("%w: unknown match mode %q", apperrors.ErrInvalidInput, mode)
	}
}
