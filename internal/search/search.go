package search

import (
	"cmp"
	"slices"
	"strings"
)

const DefaultLimit = 20

// Index is the live, queryable view over the plugin aggregate. It holds no
// copy of its own; every query reads the current aggregate from source.
type Index struct {
	source func() []Searchable
	scorer Scorer
}

type Result struct {
	Rank  int
	Score float64
	Item  Searchable
}

func NewIndex(source func() []Searchable, scorer Scorer) *Index {
	if scorer == nil {
		scorer = FuzzyScorer{}
	}
	return &Index{
		source: source,
		scorer: scorer,
	}
}

func (x *Index) Size() int {
	return len(x.source())
}

// Query returns matches whose distance (1 - score) is within threshold,
// best first. A limit of zero or less means DefaultLimit.
func (x *Index) Query(query string, threshold float64, limit int) []Result {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var results []Result
	for _, item := range x.source() {
		score, ok := x.scorer.Score(query, item.Name())
		if !ok || 1-score > threshold {
			continue
		}
		results = append(results, Result{Score: score, Item: item})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Item.Name(), b.Item.Name())
	})

	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
