// Package matching resolves free-text names extracted by the LLM onto
// catalog records despite spelling variation, transliteration, and partial
// names.
package matching

import (
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// DefaultThreshold is the minimum score for a direct lookup to count as found.
const DefaultThreshold = 60

// Match pairs a catalog index with a similarity score in [0,100].
type Match struct {
	Index int
	Score int
}

// BestMatch scans names for the single best match of query. An exact or
// substring hit on normalized forms is accepted immediately without scanning
// further. Otherwise the highest-scoring name wins, first encountered on a
// tie, and must meet the threshold. Entries with empty names are skipped.
func BestMatch(query string, names []string, threshold int) (Match, bool) {
	q := Normalize(query)
	if q == "" {
		return Match{}, false
	}

	best := Match{Index: -1, Score: -1}
	for i, name := range names {
		n := Normalize(name)
		if n == "" {
			continue
		}
		if n == q {
			return Match{Index: i, Score: 100}, true
		}
		if strings.Contains(n, q) || strings.Contains(q, n) {
			return Match{Index: i, Score: 100}, true
		}
		if s := Score(q, n); s > best.Score {
			best = Match{Index: i, Score: s}
		}
	}

	if best.Index < 0 || best.Score < threshold {
		return Match{}, false
	}
	return best, true
}

// SearchSimilar returns every name scoring at or above threshold, sorted by
// descending score and truncated to limit. Ties keep catalog order.
func SearchSimilar(query string, names []string, threshold, limit int) []Match {
	q := Normalize(query)
	if q == "" || limit <= 0 {
		return nil
	}

	var matches []Match
	for i, name := range names {
		n := Normalize(name)
		if n == "" {
			continue
		}
		s := Score(q, n)
		if n == q || strings.Contains(n, q) || strings.Contains(q, n) {
			s = 100
		}
		if s >= threshold {
			matches = append(matches, Match{Index: i, Score: s})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Score compares two already-normalized strings and returns the maximum of
// the whole-string ratio, the best-aligning-substring ratio, and the
// token-order-insensitive ratio.
func Score(a, b string) int {
	score := fuzzy.Ratio(a, b)
	if s := fuzzy.PartialRatio(a, b); s > score {
		score = s
	}
	if s := fuzzy.TokenSortRatio(a, b); s > score {
		score = s
	}
	return score
}
