package ranking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/logging"
	"github.com/vinayprograms/matchkit/telemetry"
)

// Featurizer fills in what stored candidate features lack. features.Builder
// implements it.
type Featurizer interface {
	Dimension() int
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
	Terms(text string) []string
}

// Candidate is one rankable document. Terms and Embedding may be empty, in
// which case BuildIndex derives them from Text.
type Candidate struct {
	ID        int64
	Text      string
	Terms     []string
	Embedding []float32
}

// Query is the document candidates are ranked against. Embedding is used as
// is when its length matches the embedder; otherwise Text is embedded.
type Query struct {
	Text      string
	Terms     []string
	Embedding []float32
}

// Index is a candidate pool with a fitted lexical model. It is read-only
// after BuildIndex and may be ranked against concurrently.
type Index struct {
	candidates []Candidate
	model      LexicalModel
}

// Len returns the number of candidates.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.candidates)
}

// Candidate returns the candidate at position i, as completed by BuildIndex.
func (ix *Index) Candidate(i int) Candidate {
	return ix.candidates[i]
}

// Close releases the lexical model.
func (ix *Index) Close() error {
	if ix == nil || ix.model == nil {
		return nil
	}
	return ix.model.Close()
}

// Result is a ranking. Every slice is indexed by rank position: Order[r] is
// the candidate position at rank r and Combined[r] its combined score.
// Semantic, Lexical and Overlap hold raw, pre-normalization scores.
type Result struct {
	Order    []int
	IDs      []int64
	Combined []float64
	Semantic []float64
	Lexical  []float64
	Overlap  []float64
}

// Len returns the number of ranked candidates.
func (r *Result) Len() int { return len(r.Order) }

func emptyResult() *Result {
	return &Result{
		Order:    []int{},
		IDs:      []int64{},
		Combined: []float64{},
		Semantic: []float64{},
		Lexical:  []float64{},
		Overlap:  []float64{},
	}
}

// Options wires an Engine.
type Options struct {
	Config     Config
	Featurizer Featurizer
	// Lexical defaults to the scorer named by Config.Lexical.
	Lexical Lexical
	Logger  *logging.Logger
	Tracer  *telemetry.Tracer
}

// Engine is the hybrid ranker. It holds no per-request state.
type Engine struct {
	cfg        Config
	featurizer Featurizer
	lexical    Lexical
	overlap    OverlapScorer
	logger     *logging.Logger
	tracer     *telemetry.Tracer
}

// NewEngine validates opts and returns an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Featurizer == nil {
		return nil, errors.InvalidInput("ranking: featurizer is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	lex := opts.Lexical
	if lex == nil {
		var err error
		if lex, err = NewLexical(opts.Config); err != nil {
			return nil, err
		}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}
	return &Engine{
		cfg:        opts.Config,
		featurizer: opts.Featurizer,
		lexical:    lex,
		overlap:    NewOverlapScorer(opts.Config),
		logger:     logging.OrDiscard(opts.Logger).WithComponent("ranking"),
		tracer:     tracer,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Overlap returns the scorer used for the overlap signal.
func (e *Engine) Overlap() OverlapScorer { return e.overlap }

// BuildIndex completes the candidates and fits a lexical model over their
// text. Candidates without terms are mined; candidates whose embedding is
// missing or of the wrong length are embedded together in one batch.
func (e *Engine) BuildIndex(ctx context.Context, cands []Candidate) (idx *Index, err error) {
	ctx, span := e.tracer.StartSpan(ctx, "ranking.build_index",
		trace.WithAttributes(attribute.Int("ranking.candidates", len(cands))))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	dim := e.featurizer.Dimension()
	out := make([]Candidate, len(cands))
	texts := make([]string, len(cands))
	var missing []int
	for i, c := range cands {
		c.Terms = append([]string(nil), c.Terms...)
		if len(c.Terms) == 0 && strings.TrimSpace(c.Text) != "" {
			c.Terms = e.featurizer.Terms(c.Text)
		}
		if len(c.Embedding) != dim {
			missing = append(missing, i)
			c.Embedding = nil
		}
		out[i] = c
		texts[i] = c.Text
	}

	if len(missing) > 0 {
		batch := make([]string, len(missing))
		for j, i := range missing {
			batch[j] = out[i].Text
		}
		vecs, err := e.featurizer.EmbedPassages(ctx, batch)
		if err != nil {
			return nil, errors.Wrap(err, "embedding candidates", errors.WithOp("ranking.build_index"))
		}
		if len(vecs) != len(batch) {
			return nil, errors.Newf(errors.ErrCodeEmbeddingFailed, "embedder returned %d vectors for %d candidates", len(vecs), len(batch))
		}
		for j, i := range missing {
			out[i].Embedding = vecs[j]
		}
	}

	model, err := e.lexical.Fit(ctx, texts)
	if err != nil {
		return nil, errors.Wrap(err, "fitting lexical model", errors.WithOp("ranking.build_index"))
	}

	e.logger.Debug("index_built", logging.Fields{
		"candidates": len(out),
		"embedded":   len(missing),
		"lexical":    e.lexical.Name(),
		"duration":   time.Since(start).String(),
	})
	return &Index{candidates: out, model: model}, nil
}

// Rank scores every candidate in idx against q and returns the best topK,
// or the engine's TopK when topK <= 0. Equal combined scores keep pool order.
func (e *Engine) Rank(ctx context.Context, q Query, idx *Index, w Weights, topK int) (res *Result, err error) {
	ctx, span := e.tracer.StartSpan(ctx, "ranking.rank",
		trace.WithAttributes(attribute.Int("ranking.pool", idx.Len())))
	defer func() { endSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "ranking", errors.WithOp("ranking.rank"))
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	n := idx.Len()
	if n == 0 {
		return emptyResult(), nil
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	k := topK
	if n < k {
		k = n
	}

	qvec, err := e.queryVector(ctx, q)
	if err != nil {
		return nil, err
	}

	cos := make([]float64, n)
	for i, c := range idx.candidates {
		cos[i] = Cosine(qvec, c.Embedding)
	}

	lex, err := idx.model.Scores(ctx, q.Text)
	if err != nil {
		return nil, errors.Wrap(err, "lexical scoring", errors.WithOp("ranking.rank"))
	}
	if len(lex) != n {
		return nil, errors.Internal(fmt.Sprintf("lexical model returned %d scores for %d candidates", len(lex), n))
	}

	ov := make([]float64, n)
	if w.Gamma > 0 {
		for i, c := range idx.candidates {
			ov[i] = e.overlap.Score(q.Terms, c.Terms)
		}
	}

	cosN := MinMax(cos, e.cfg.Epsilon)
	lexN := MinMax(lex, e.cfg.Epsilon)
	ovN := ov
	if maxOf(ov) > 0 {
		ovN = MinMax(ov, e.cfg.Epsilon)
	}

	combined := make([]float64, n)
	order := make([]int, n)
	for i := range combined {
		combined[i] = w.Alpha*cosN[i] + w.Beta*lexN[i] + w.Gamma*ovN[i]
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return combined[order[a]] > combined[order[b]]
	})
	order = order[:k]

	res = &Result{
		Order:    order,
		IDs:      make([]int64, k),
		Combined: make([]float64, k),
		Semantic: make([]float64, k),
		Lexical:  make([]float64, k),
		Overlap:  make([]float64, k),
	}
	for r, i := range order {
		res.IDs[r] = idx.candidates[i].ID
		res.Combined[r] = combined[i]
		res.Semantic[r] = cos[i]
		res.Lexical[r] = lex[i]
		res.Overlap[r] = ov[i]
	}
	span.SetAttributes(attribute.Int("ranking.returned", k))
	return res, nil
}

func (e *Engine) queryVector(ctx context.Context, q Query) ([]float32, error) {
	if len(q.Embedding) == e.featurizer.Dimension() {
		return q.Embedding, nil
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.InvalidInput("ranking: query has neither a usable embedding nor text", errors.WithOp("ranking.rank"))
	}
	vec, err := e.featurizer.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, errors.Wrap(err, "embedding query", errors.WithOp("ranking.rank"))
	}
	return vec, nil
}

func maxOf(xs []float64) float64 {
	m := 0.0
	for i, x := range xs {
		if i == 0 || x > m {
			m = x
		}
	}
	return m
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
