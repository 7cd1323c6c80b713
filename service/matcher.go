package service

import (
	"strings"
	"unicode/utf8"
)

// NameMatcher decides whether two product names refer to the same physical
// listing. It is deliberately pluggable: the default heuristic has no formal
// guarantee and may need to be swapped for a stricter one without touching
// the merge logic.
type NameMatcher interface {
	Matches(a, b string) bool
}

// SubstringMatcher treats two names as the same listing when they are equal
// ignoring case, or when both are longer than MinRunes and one contains the
// other. Product postings are often split across messages ("Sakura Cookie"
// then "Sakura Cookie Box"), so containment catches the follow-up fragments.
type SubstringMatcher struct {
	MinRunes int
}

// DefaultMatcher returns the matcher the reconciler ships with.
func DefaultMatcher() NameMatcher {
	return SubstringMatcher{MinRunes: 3}
}

func (m SubstringMatcher) Matches(a, b string) bool {
	n1 := strings.ToLower(strings.TrimSpace(a))
	n2 := strings.ToLower(strings.TrimSpace(b))
	if n1 == n2 {
		return true
	}
	// Containment only counts for names long enough to be distinctive.
	if utf8.RuneCountInString(n1) <= m.MinRunes || utf8.RuneCountInString(n2) <= m.MinRunes {
		return false
	}
	return strings.Contains(n1, n2) || strings.Contains(n2, n1)
}
