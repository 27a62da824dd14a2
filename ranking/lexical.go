package ranking

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/vinayprograms/matchkit/errors"
)

// Lexical fits a bag-of-words model over a candidate pool.
type Lexical interface {
	Name() string
	Fit(ctx context.Context, docs []string) (LexicalModel, error)
}

// LexicalModel scores a query against every document it was fitted on.
type LexicalModel interface {
	// Scores returns one raw score per fitted document, in fit order.
	Scores(ctx context.Context, query string) ([]float64, error)
	Close() error
}

// NewLexical returns the scorer named by cfg.Lexical.
func NewLexical(cfg Config) (Lexical, error) {
	switch cfg.Lexical {
	case "", LexicalBM25:
		return BM25{K1: cfg.K1, B: cfg.B}, nil
	case LexicalBleve:
		return Bleve{}, nil
	default:
		return nil, errors.InvalidInput("ranking: unknown lexical scorer " + strconv.Quote(cfg.Lexical))
	}
}

var word = regexp.MustCompile(`[\p{L}\p{N}#+]+`)

// Tokenize lower-cases text and splits it into letter/digit runs. "#" and "+"
// stay attached so "c#" and "c++" survive.
func Tokenize(text string) []string {
	return word.FindAllString(strings.ToLower(text), -1)
}

// BM25 is the Okapi BM25 scorer over Tokenize output.
type BM25 struct {
	K1 float64
	B  float64
}

// Name implements Lexical.
func (BM25) Name() string { return LexicalBM25 }

// Fit implements Lexical.
func (s BM25) Fit(ctx context.Context, docs []string) (LexicalModel, error) {
	m := &bm25Model{
		k1:    s.K1,
		b:     s.B,
		freqs: make([]map[string]int, len(docs)),
		lens:  make([]float64, len(docs)),
		df:    make(map[string]int),
	}
	var total float64
	for i, d := range docs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "fitting bm25", errors.WithOp("ranking.bm25"))
			}
		}
		tf := make(map[string]int)
		toks := Tokenize(d)
		for _, t := range toks {
			tf[t]++
		}
		for t := range tf {
			m.df[t]++
		}
		m.freqs[i] = tf
		m.lens[i] = float64(len(toks))
		total += float64(len(toks))
	}
	if len(docs) > 0 {
		m.avgLen = total / float64(len(docs))
	}
	return m, nil
}

type bm25Model struct {
	k1, b  float64
	freqs  []map[string]int
	lens   []float64
	avgLen float64
	df     map[string]int
}

func (m *bm25Model) idf(term string) float64 {
	n := float64(len(m.freqs))
	df := float64(m.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func (m *bm25Model) Scores(_ context.Context, query string) ([]float64, error) {
	scores := make([]float64, len(m.freqs))
	if m.avgLen == 0 {
		return scores, nil
	}
	for _, q := range Tokenize(query) {
		if m.df[q] == 0 {
			continue
		}
		idf := m.idf(q)
		for i, tf := range m.freqs {
			f := float64(tf[q])
			if f == 0 {
				continue
			}
			norm := m.k1 * (1 - m.b + m.b*m.lens[i]/m.avgLen)
			scores[i] += idf * f * (m.k1 + 1) / (f + norm)
		}
	}
	return scores, nil
}

func (m *bm25Model) Close() error { return nil }

// Bleve scores with an in-memory bleve index using the Spanish analyzer, so
// stemming lets "desarrollador" meet "desarrolladores".
type Bleve struct{}

// Name implements Lexical.
func (Bleve) Name() string { return LexicalBleve }

type lexicalDoc struct {
	Text string `json:"text"`
}

func buildLexicalMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = es.AnalyzerName
	textField.Store = false
	textField.IncludeInAll = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = es.AnalyzerName
	return indexMapping
}

// Fit implements Lexical. Documents are indexed under their position.
func (Bleve) Fit(ctx context.Context, docs []string) (LexicalModel, error) {
	index, err := bleve.NewMemOnly(buildLexicalMapping())
	if err != nil {
		return nil, errors.Wrap(err, "creating bleve index", errors.WithOp("ranking.bleve"))
	}
	batch := index.NewBatch()
	for i, d := range docs {
		if err := batch.Index(strconv.Itoa(i), lexicalDoc{Text: d}); err != nil {
			index.Close()
			return nil, errors.Wrap(err, "indexing candidate", errors.WithOp("ranking.bleve"))
		}
	}
	if err := ctx.Err(); err != nil {
		index.Close()
		return nil, errors.Wrap(err, "fitting bleve", errors.WithOp("ranking.bleve"))
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, errors.Wrap(err, "indexing candidates", errors.WithOp("ranking.bleve"))
	}
	return &bleveModel{index: index, n: len(docs)}, nil
}

type bleveModel struct {
	index bleve.Index
	n     int
}

func (m *bleveModel) Scores(ctx context.Context, query string) ([]float64, error) {
	scores := make([]float64, m.n)
	if m.n == 0 || strings.TrimSpace(query) == "" {
		return scores, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = m.n

	res, err := m.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "searching candidates", errors.WithOp("ranking.bleve"))
	}
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= m.n {
			continue
		}
		scores[i] = hit.Score
	}
	return scores, nil
}

func (m *bleveModel) Close() error { return m.index.Close() }
