package search

import (
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

// Scorer rates how well query matches name. Scores are in [0, 1], higher is
// better, and ok is false when the query does not match at all.
type Scorer interface {
	Score(query, name string) (score float64, ok bool)
}

type ScorerFunc func(query, name string) (float64, bool)

func (f ScorerFunc) Score(query, name string) (float64, bool) {
	return f(query, name)
}

// FuzzyScorer matches query runes in order, tolerating gaps. The score is the
// mean of how much of the name the query covers and how contiguous the
// matched runes are.
type FuzzyScorer struct{}

func (FuzzyScorer) Score(query, name string) (float64, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(name)
	if q == "" || n == "" {
		return 0, false
	}

	matches := fuzzy.Find(q, []string{n})
	if len(matches) == 0 {
		return 0, false
	}
	idx := matches[0].MatchedIndexes

	qLen := utf8.RuneCountInString(q)
	nLen := utf8.RuneCountInString(n)

	coverage := min(1, float64(qLen)/float64(nLen))

	runs := 1
	for i := 1; i < len(idx); i++ {
		if idx[i] == idx[i-1]+1 {
			runs++
		}
	}
	contiguity := min(1, float64(runs)/float64(qLen))

	return (coverage + contiguity) / 2, true
}
