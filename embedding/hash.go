package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var hashToken = regexp.MustCompile(`[\p{L}\p{N}#+]+`)

// HashEmbedder maps text to a bag-of-words vector by feature hashing: each
// lower-cased token adds ±1 to one of Dimension buckets, and the result is
// L2-normalized. Texts sharing words get positive cosine similarity; texts
// sharing none score near zero. It needs no network and is deterministic.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a HashEmbedder. A non-positive dimension means
// DefaultDimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Name implements Provider.
func (h *HashEmbedder) Name() string { return "hash" }

// Dimension implements Provider.
func (h *HashEmbedder) Dimension() int { return h.dimension }

// Embed implements Provider.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, providerError(h.Name(), 0, err)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dimension)
	for _, tok := range hashToken.FindAllString(strings.ToLower(text), -1) {
		f := fnv.New64a()
		f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dimension))
		if sum&(1<<63) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
