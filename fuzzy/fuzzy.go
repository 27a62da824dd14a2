// Package fuzzy scores approximate string similarity on a 0-100 scale.
//
// Scores build on the normalized Indel similarity (insertions and deletions
// only, computed through the longest common subsequence). TokenSetRatio
// compares the whitespace token sets of two strings so word order and repeated words
// do not matter, and a string whose tokens are a subset of the other's
// scores 100.
package fuzzy

import (
	"sort"
	"strings"
)

// ratio returns 100 * (1 - indel(a, b) / (len(a) + len(b))) over runes.
// Two empty strings score 100.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	return normalized(indel(ra, rb), len(ra)+len(rb))
}

// TokenSetRatio returns the token-set similarity of a and b.
// Either side having no tokens scores 0.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var sect, diffAB, diffBA []string
	for tok := range ta {
		if tb[tok] {
			sect = append(sect, tok)
		} else {
			diffAB = append(diffAB, tok)
		}
	}
	for tok := range tb {
		if !ta[tok] {
			diffBA = append(diffBA, tok)
		}
	}

	if len(sect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}

	sort.Strings(sect)
	sort.Strings(diffAB)
	sort.Strings(diffBA)

	sectStr := []rune(strings.Join(sect, " "))
	ab := []rune(strings.Join(diffAB, " "))
	ba := []rune(strings.Join(diffBA, " "))

	sectLen, abLen, baLen := len(sectStr), len(ab), len(ba)
	sep := 0
	if sectLen > 0 {
		sep = 1
	}
	sectABLen := sectLen + sep + abLen
	sectBALen := sectLen + sep + baLen

	if sectLen == 0 {
		return ratio(string(ab), string(ba))
	}
	// indel(sect+ab, sect+ba) == indel(ab, ba): the shared prefix cancels.
	best := normalized(indel(ab, ba), sectABLen+sectBALen)

	// sect against sect+ab differs only by the appended diff.
	if r := normalized(sep+abLen, sectLen+sectABLen); r > best {
		best = r
	}
	if r := normalized(sep+baLen, sectLen+sectBALen); r > best {
		best = r
	}
	return best
}

// Match is the best-scoring choice for a query.
type Match struct {
	Index int
	Value string
	Score float64
}

// Scorer compares two strings on a 0-100 scale.
type Scorer func(a, b string) float64

// ExtractOne returns the highest-scoring choice for query. The earliest
// choice wins ties. ok is false when choices is empty.
func ExtractOne(query string, choices []string, scorer Scorer) (Match, bool) {
	if len(choices) == 0 {
		return Match{}, false
	}
	if scorer == nil {
		scorer = TokenSetRatio
	}
	best := Match{Index: -1, Score: -1}
	for i, c := range choices {
		s := scorer(query, c)
		if s > best.Score {
			best = Match{Index: i, Value: c, Score: s}
			if s >= 100 {
				break
			}
		}
	}
	return best, true
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func normalized(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 * (1 - float64(dist)/float64(lensum))
}

// indel is len(a) + len(b) - 2*LCS(a, b).
func indel(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return len(a) + len(b) - 2*prev[len(b)]
}
