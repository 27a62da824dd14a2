package keyphrase

import (
	"sort"
	"strings"
)

// Rake ranks phrases by the sum of their words' degree/frequency ratio, where
// a phrase is a run of non-stopwords inside a clause.
type Rake struct {
	stop     Stopwords
	maxWords int
}

// NewRake creates a RAKE extractor. Phrases longer than maxWords are
// discarded; maxWords <= 0 means no limit.
func NewRake(stop Stopwords, maxWords int) *Rake {
	return &Rake{stop: stop, maxWords: maxWords}
}

// Name implements Extractor.
func (r *Rake) Name() string { return "rake" }

// Extract implements Extractor. Phrases come back highest score first; equal
// scores keep first-seen order.
func (r *Rake) Extract(text string) []string {
	phrases := r.phrases(text)
	if len(phrases) == 0 {
		return nil
	}

	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, p := range phrases {
		for _, w := range p {
			freq[w]++
			degree[w] += len(p)
		}
	}

	type scored struct {
		phrase string
		score  float64
	}
	seen := make(map[string]bool)
	var ranked []scored
	for _, p := range phrases {
		key := strings.Join(p, " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		var score float64
		for _, w := range p {
			score += float64(degree[w]) / float64(freq[w])
		}
		ranked = append(ranked, scored{phrase: key, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.phrase
	}
	return out
}

func (r *Rake) phrases(text string) [][]string {
	var out [][]string
	for _, clause := range clauses(strings.ToLower(text)) {
		var cur []string
		flush := func() {
			if len(cur) > 0 && (r.maxWords <= 0 || len(cur) <= r.maxWords) {
				out = append(out, cur)
			}
			cur = nil
		}
		for _, tok := range clause {
			if r.stop.Has(tok) {
				flush()
				continue
			}
			cur = append(cur, tok)
		}
		flush()
	}
	return out
}
