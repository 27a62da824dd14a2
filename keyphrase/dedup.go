package keyphrase

import "github.com/vinayprograms/matchkit/fuzzy"

// DefaultDedupThreshold is the token-set similarity at or above which a
// phrase counts as a duplicate of one already kept.
const DefaultDedupThreshold = 88

// Dedup collapses near-duplicate phrases in one greedy pass. The first
// phrase is always kept; each later phrase is kept only when its best
// TokenSetRatio against the phrases kept so far is strictly below threshold.
// The result depends on input order.
func Dedup(phrases []string, threshold float64) []string {
	kept := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if m, ok := fuzzy.ExtractOne(p, kept, fuzzy.TokenSetRatio); ok && m.Score >= threshold {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
