package ranking

import (
	"math"
	"strings"

	"github.com/vinayprograms/matchkit/fuzzy"
)

// Cosine computes the cosine similarity of two embeddings, in [-1, 1].
// Vectors of different length, empty vectors and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// MinMax rescales xs to [0,1] as (x-min)/(max-min+eps). A flat dimension
// maps to all zeros. The input is not modified.
func MinMax(xs []float64, eps float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	for i, x := range xs {
		out[i] = (x - lo) / (hi - lo + eps)
	}
	return out
}

// OverlapScorer weighs query terms found in a candidate's term list.
type OverlapScorer struct {
	Threshold        float64
	MultiWordWeight  float64
	SingleWordWeight float64
}

// NewOverlapScorer takes its constants from cfg.
func NewOverlapScorer(cfg Config) OverlapScorer {
	return OverlapScorer{
		Threshold:        cfg.MatchThreshold,
		MultiWordWeight:  cfg.MultiWordWeight,
		SingleWordWeight: cfg.SingleWordWeight,
	}
}

func (o OverlapScorer) matches(term string, candidate []string) bool {
	m, ok := fuzzy.ExtractOne(term, candidate, fuzzy.TokenSetRatio)
	return ok && m.Score >= o.Threshold
}

// Score sums, over query terms present in candidate, MultiWordWeight for
// multi-word terms and SingleWordWeight for single words.
func (o OverlapScorer) Score(query, candidate []string) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	var total float64
	for _, t := range query {
		if !o.matches(t, candidate) {
			continue
		}
		if strings.Contains(t, " ") {
			total += o.MultiWordWeight
		} else {
			total += o.SingleWordWeight
		}
	}
	return total
}

// Pretty returns up to top query terms present in candidate, in query order.
func (o OverlapScorer) Pretty(query, candidate []string, top int) []string {
	out := []string{}
	if top <= 0 || len(candidate) == 0 {
		return out
	}
	for _, t := range query {
		if o.matches(t, candidate) {
			out = append(out, t)
			if len(out) == top {
				break
			}
		}
	}
	return out
}

// Round4 rounds to four decimals, the precision scores are reported at.
func Round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
