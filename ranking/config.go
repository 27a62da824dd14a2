package ranking

import (
	"fmt"

	"github.com/vinayprograms/matchkit/errors"
)

// Lexical scorer names accepted by Config.Lexical.
const (
	LexicalBM25  = "bm25"
	LexicalBleve = "bleve"
)

// Weights are the per-signal coefficients of the combined score.
type Weights struct {
	Alpha float64 `toml:"alpha"` // semantic
	Beta  float64 `toml:"beta"`  // lexical
	Gamma float64 `toml:"gamma"` // term overlap
}

// Sum is the upper bound of a combined score under these weights.
func (w Weights) Sum() float64 { return w.Alpha + w.Beta + w.Gamma }

// Validate rejects negative weights.
func (w Weights) Validate() error {
	if w.Alpha < 0 || w.Beta < 0 || w.Gamma < 0 {
		return errors.InvalidInput(fmt.Sprintf("ranking: weights must be non-negative (alpha=%g beta=%g gamma=%g)", w.Alpha, w.Beta, w.Gamma))
	}
	return nil
}

// Config tunes an Engine.
type Config struct {
	TopK int `toml:"top_k"`
	Weights

	// MatchThreshold is the TokenSetRatio at which a query term counts as
	// present in a candidate's term list.
	MatchThreshold   float64 `toml:"match_threshold"`
	MultiWordWeight  float64 `toml:"multi_word_weight"`
	SingleWordWeight float64 `toml:"single_word_weight"`

	// Epsilon keeps min-max normalization finite when a dimension is flat.
	Epsilon float64 `toml:"epsilon"`

	Lexical string  `toml:"lexical"`
	K1      float64 `toml:"k1"`
	B       float64 `toml:"b"`

	// PoolLimit bounds how many postings are read when no candidate set is given.
	PoolLimit int `toml:"pool_limit"`
	// OverlapTop bounds the matched terms reported per candidate.
	OverlapTop int `toml:"overlap_top"`
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		TopK:             100,
		Weights:          Weights{Alpha: 0.55, Beta: 0.45, Gamma: 0},
		MatchThreshold:   90,
		MultiWordWeight:  1.0,
		SingleWordWeight: 0.6,
		Epsilon:          1e-9,
		Lexical:          LexicalBM25,
		K1:               1.5,
		B:                0.75,
		PoolLimit:        10000,
		OverlapTop:       10,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	op := errors.WithOp("ranking.config")
	if c.TopK <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("top_k must be positive, got %d", c.TopK), op)
	}
	if err := c.Weights.Validate(); err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeConfigInvalid, "invalid default weights", op)
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 100 {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("match_threshold must be within [0,100], got %g", c.MatchThreshold), op)
	}
	if c.Epsilon <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "epsilon must be positive", op)
	}
	switch c.Lexical {
	case LexicalBM25, LexicalBleve:
	default:
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown lexical scorer %q", c.Lexical), op)
	}
	if c.K1 < 0 || c.B < 0 || c.B > 1 {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("bm25 parameters out of range (k1=%g b=%g)", c.K1, c.B), op)
	}
	if c.PoolLimit <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "pool_limit must be positive", op)
	}
	if c.OverlapTop < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "overlap_top must not be negative", op)
	}
	return nil
}
