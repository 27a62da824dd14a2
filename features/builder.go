package features

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/matchkit/document"
	"github.com/vinayprograms/matchkit/embedding"
	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/keyphrase"
	"github.com/vinayprograms/matchkit/logging"
	"github.com/vinayprograms/matchkit/telemetry"
)

// TextExtractor reads raw text out of document bytes.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Options wires a Builder.
type Options struct {
	Extractor TextExtractor
	Miner     *keyphrase.Miner
	Embedder  embedding.Provider

	// QueryPrefix is prepended to résumé text before embedding and
	// PassagePrefix to posting text.
	QueryPrefix   string
	PassagePrefix string

	// FieldOrder defaults to DefaultFieldOrder.
	FieldOrder []string

	Logger *logging.Logger
	Tracer *telemetry.Tracer
}

// Builder produces DocumentFeatures. It is safe for concurrent use.
type Builder struct {
	extractor  TextExtractor
	miner      *keyphrase.Miner
	query      embedding.Provider
	passage    embedding.Provider
	fieldOrder []string
	logger     *logging.Logger
	tracer     *telemetry.Tracer
	now        func() time.Time
}

// NewBuilder validates opts and returns a Builder.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Miner == nil {
		return nil, errors.InvalidInput("features: miner is required")
	}
	if opts.Embedder == nil {
		return nil, errors.InvalidInput("features: embedder is required")
	}
	fieldOrder := opts.FieldOrder
	if len(fieldOrder) == 0 {
		fieldOrder = DefaultFieldOrder
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}
	return &Builder{
		extractor:  opts.Extractor,
		miner:      opts.Miner,
		query:      embedding.WithPrefix(opts.Embedder, opts.QueryPrefix),
		passage:    embedding.WithPrefix(opts.Embedder, opts.PassagePrefix),
		fieldOrder: fieldOrder,
		logger:     logging.OrDiscard(opts.Logger).WithComponent("features"),
		tracer:     tracer,
		now:        time.Now,
	}, nil
}

// Dimension is the embedding length every record built here carries.
func (b *Builder) Dimension() int {
	return b.query.Dimension()
}

// FieldOrder returns the posting field order in use.
func (b *Builder) FieldOrder() []string {
	return append([]string(nil), b.fieldOrder...)
}

// FromDocument builds résumé features from document bytes. Extraction
// failure is returned as DOCUMENT_UNREADABLE and nothing is built.
func (b *Builder) FromDocument(ctx context.Context, ownerID int64, data []byte) (*DocumentFeatures, error) {
	if b.extractor == nil {
		return nil, errors.Internal("features: no extractor configured", errors.WithOp("features.document"))
	}

	spanCtx, span := b.tracer.StartExtractSpan(ctx)
	raw, err := b.extractor.Extract(spanCtx, data)
	b.tracer.EndExtractSpan(span, telemetry.ExtractSpanOptions{Bytes: len(data), Chars: len(raw)}, err)
	if err != nil {
		return nil, errors.Wrap(err, "reading résumé", errors.WithOp("features.document"), errors.WithOwner(ownerID))
	}
	return b.FromText(ctx, ownerID, raw)
}

// FromText builds résumé features from already extracted text.
func (b *Builder) FromText(ctx context.Context, ownerID int64, raw string) (f *DocumentFeatures, err error) {
	start := time.Now()
	ctx, span := b.tracer.StartFeaturesSpan(ctx, string(KindResume))
	defer func() {
		b.finish(span, KindResume, ownerID, f, start, err)
	}()

	text := document.Normalize(raw)
	if strings.TrimSpace(text) == "" {
		return nil, errors.Unreadable("résumé has no text", errors.WithOp("features.resume"), errors.WithOwner(ownerID))
	}

	terms := b.miner.MineSkills(document.Segment(text))
	vec, err := b.embedOne(ctx, b.query, text)
	if err != nil {
		return nil, errors.Wrap(err, "embedding résumé", errors.WithOp("features.resume"), errors.WithOwner(ownerID))
	}
	return &DocumentFeatures{
		OwnerID:   ownerID,
		Text:      text,
		Terms:     terms,
		Embedding: vec,
		UpdatedAt: b.now().UTC(),
	}, nil
}

// FromRecord builds posting features from a structured record. A record
// whose flattened text is blank yields empty terms and an empty embedding
// without calling the embedder.
func (b *Builder) FromRecord(ctx context.Context, ownerID int64, rec Record) (f *DocumentFeatures, err error) {
	start := time.Now()
	ctx, span := b.tracer.StartFeaturesSpan(ctx, string(KindPosting))
	defer func() {
		b.finish(span, KindPosting, ownerID, f, start, err)
	}()

	text := document.Normalize(PostingText(rec, b.fieldOrder))
	f = &DocumentFeatures{
		OwnerID:   ownerID,
		Text:      text,
		Terms:     []string{},
		Embedding: []float32{},
		UpdatedAt: b.now().UTC(),
	}
	if strings.TrimSpace(text) == "" {
		return f, nil
	}

	f.Terms = b.miner.Terms(text)
	f.Embedding, err = b.embedOne(ctx, b.passage, text)
	if err != nil {
		return nil, errors.Wrap(err, "embedding posting", errors.WithOp("features.posting"), errors.WithOwner(ownerID))
	}
	return f, nil
}

// EmbedQuery embeds résumé-side text in the query role.
func (b *Builder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return b.embedOne(ctx, b.query, text)
}

// EmbedPassages embeds posting-side texts in the passage role, in one batch.
func (b *Builder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return b.passage.Embed(ctx, texts)
}

// Terms mines posting-style terms from text.
func (b *Builder) Terms(text string) []string {
	return b.miner.Terms(text)
}

func (b *Builder) embedOne(ctx context.Context, p embedding.Provider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errors.Newf(errors.ErrCodeEmbeddingFailed, "%s returned %d vectors for 1 text", p.Name(), len(vecs))
	}
	return vecs[0], nil
}

func (b *Builder) finish(span trace.Span, kind Kind, ownerID int64, f *DocumentFeatures, start time.Time, err error) {
	opts := telemetry.FeaturesSpanOptions{Kind: string(kind), OwnerID: ownerID}
	if f != nil {
		opts.Terms = len(f.Terms)
		opts.Dimension = len(f.Embedding)
		opts.Text = f.Text
	}
	b.tracer.EndFeaturesSpan(span, opts, err)
	if err != nil {
		b.logger.Error("features_failed", logging.Fields{
			"kind":  string(kind),
			"owner": ownerID,
			"error": err.Error(),
		})
		return
	}
	b.logger.FeaturesBuilt(string(kind), ownerID, opts.Terms, opts.Dimension, time.Since(start))
}
