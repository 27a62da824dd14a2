package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with pipeline-specific helpers.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // When true, include document text in span attributes
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a tracer on the global TracerProvider.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
		debug:  debug,
	}
}

// NewTracerFromProvider creates a tracer on a specific provider.
func NewTracerFromProvider(tp trace.TracerProvider, name string, debug bool) *Tracer {
	return &Tracer{tracer: tp.Tracer(name), debug: debug}
}

// SetDebug enables or disables debug mode (content in spans).
func (t *Tracer) SetDebug(debug bool) {
	t.debug = debug
}

// Debug returns whether debug mode is enabled.
func (t *Tracer) Debug() bool {
	return t.debug
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Extraction Spans ---

// ExtractSpanOptions describes a finished extraction.
type ExtractSpanOptions struct {
	Bytes int
	Chars int
}

// StartExtractSpan starts a span around document text extraction.
func (t *Tracer) StartExtractSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "extract.document", trace.WithSpanKind(trace.SpanKindInternal))
}

// EndExtractSpan ends an extraction span.
func (t *Tracer) EndExtractSpan(span trace.Span, opts ExtractSpanOptions, err error) {
	span.SetAttributes(
		attribute.Int("extract.bytes", opts.Bytes),
		attribute.Int("extract.chars", opts.Chars),
	)
	end(span, err)
}

// --- Feature Spans ---

// FeaturesSpanOptions describes a built feature record.
type FeaturesSpanOptions struct {
	Kind      string // resume, posting
	OwnerID   int64
	Terms     int
	Dimension int
	Text      string // Only included if debug=true
}

// StartFeaturesSpan starts a span for building one feature record.
func (t *Tracer) StartFeaturesSpan(ctx context.Context, kind string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "features."+kind, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("features.kind", kind))
	return ctx, span
}

// EndFeaturesSpan ends a feature span with attributes.
func (t *Tracer) EndFeaturesSpan(span trace.Span, opts FeaturesSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int64("features.owner_id", opts.OwnerID),
		attribute.Int("features.terms", opts.Terms),
		attribute.Int("features.dimension", opts.Dimension),
	}
	if t.debug && opts.Text != "" {
		attrs = append(attrs, attribute.String("features.text", truncate(opts.Text, 4000)))
	}
	span.SetAttributes(attrs...)
	end(span, err)
}

// --- Embedding Spans ---

// EmbeddingSpanOptions describes one provider call.
type EmbeddingSpanOptions struct {
	Provider  string
	Model     string
	Texts     int
	Dimension int
}

// StartEmbeddingSpan starts a span for an embedding provider call.
func (t *Tracer) StartEmbeddingSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "embedding."+provider, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("embedding.provider", provider))
	return ctx, span
}

// EndEmbeddingSpan ends an embedding span with attributes.
func (t *Tracer) EndEmbeddingSpan(span trace.Span, opts EmbeddingSpanOptions, err error) {
	span.SetAttributes(
		attribute.String("embedding.model", opts.Model),
		attribute.Int("embedding.texts", opts.Texts),
		attribute.Int("embedding.dimension", opts.Dimension),
	)
	end(span, err)
}

// --- Ranking Spans ---

// RankingSpanOptions describes a finished ranking request.
type RankingSpanOptions struct {
	OwnerID  int64
	Pool     int
	Returned int
	Fallback bool
	Alpha    float64
	Beta     float64
	Gamma    float64
}

// StartRankingSpan starts a span for one ranking request.
func (t *Tracer) StartRankingSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "matcher.rank_postings", trace.WithSpanKind(trace.SpanKindInternal))
}

// EndRankingSpan ends a ranking span with attributes.
func (t *Tracer) EndRankingSpan(span trace.Span, opts RankingSpanOptions, err error) {
	span.SetAttributes(
		attribute.Int64("ranking.owner_id", opts.OwnerID),
		attribute.Int("ranking.pool", opts.Pool),
		attribute.Int("ranking.returned", opts.Returned),
		attribute.Bool("ranking.fallback", opts.Fallback),
		attribute.Float64("ranking.alpha", opts.Alpha),
		attribute.Float64("ranking.beta", opts.Beta),
		attribute.Float64("ranking.gamma", opts.Gamma),
	)
	end(span, err)
}

// --- Helpers ---

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
