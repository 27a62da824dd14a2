package matcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/features"
	"github.com/vinayprograms/matchkit/logging"
	"github.com/vinayprograms/matchkit/ranking"
	"github.com/vinayprograms/matchkit/store"
	"github.com/vinayprograms/matchkit/telemetry"
)

const opRank = "matcher.rank_postings"

// Options wires a Service.
type Options struct {
	Store   store.Store
	Builder *features.Builder
	Engine  *ranking.Engine

	// Events receives ranking events. Defaults to a no-op exporter.
	Events telemetry.Exporter

	Logger *logging.Logger
	Tracer *telemetry.Tracer
}

// Service exposes feature building, record upkeep and ranking.
// It is safe for concurrent use.
type Service struct {
	store   store.Store
	builder *features.Builder
	engine  *ranking.Engine
	events  telemetry.Exporter
	logger  *logging.Logger
	tracer  *telemetry.Tracer
	newID   func() string
}

// New validates opts and returns a Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.InvalidInput("matcher: store is required")
	}
	if opts.Builder == nil {
		return nil, errors.InvalidInput("matcher: feature builder is required")
	}
	if opts.Engine == nil {
		return nil, errors.InvalidInput("matcher: ranking engine is required")
	}
	events := opts.Events
	if events == nil {
		events = telemetry.NewNoopExporter()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}
	return &Service{
		store:   opts.Store,
		builder: opts.Builder,
		engine:  opts.Engine,
		events:  events,
		logger:  logging.OrDiscard(opts.Logger).WithComponent("matcher"),
		tracer:  tracer,
		newID:   uuid.NewString,
	}, nil
}

// Close flushes the event exporter and closes the store.
func (s *Service) Close() error {
	return errors.Join(s.events.Close(), s.store.Close())
}

// Store returns the backing store.
func (s *Service) Store() store.Store { return s.store }

// --- Feature building ---

// BuildFeaturesFromDocumentBytes builds a résumé feature record without
// storing it. An unreadable document fails with DOCUMENT_UNREADABLE.
func (s *Service) BuildFeaturesFromDocumentBytes(ctx context.Context, data []byte) (*features.DocumentFeatures, error) {
	return s.builder.FromDocument(ctx, 0, data)
}

// BuildFeaturesFromStructuredRecord builds a posting feature record without
// storing it. A record with no text yields empty terms and embedding.
func (s *Service) BuildFeaturesFromStructuredRecord(ctx context.Context, rec features.Record) (*features.DocumentFeatures, error) {
	return s.builder.FromRecord(ctx, 0, rec)
}

// --- Résumés ---

// UpsertResumeFromDocument rebuilds and stores the résumé record of
// ownerID. Nothing is stored when any step fails.
func (s *Service) UpsertResumeFromDocument(ctx context.Context, ownerID int64, data []byte) (*features.DocumentFeatures, error) {
	f, err := s.builder.FromDocument(ctx, ownerID, data)
	if err != nil {
		return nil, err
	}
	return s.saveResume(ctx, f)
}

// UpsertResumeFromText is UpsertResumeFromDocument for text that was already
// extracted.
func (s *Service) UpsertResumeFromText(ctx context.Context, ownerID int64, text string) (*features.DocumentFeatures, error) {
	f, err := s.builder.FromText(ctx, ownerID, text)
	if err != nil {
		return nil, err
	}
	return s.saveResume(ctx, f)
}

func (s *Service) saveResume(ctx context.Context, f *features.DocumentFeatures) (*features.DocumentFeatures, error) {
	if err := s.store.UpsertResumeFeatures(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Debug("resume_saved", logging.Fields{"owner": f.OwnerID, "terms": len(f.Terms)})
	return f, nil
}

// DeleteResume removes the résumé record of ownerID.
func (s *Service) DeleteResume(ctx context.Context, ownerID int64) error {
	return s.store.DeleteResumeFeatures(ctx, ownerID)
}

// --- Postings ---

// PutPosting stores p and its freshly built feature record. Features are
// built before anything is written, so a failed build leaves the store
// untouched. A zero p.ID is assigned by the store.
func (s *Service) PutPosting(ctx context.Context, p *store.Posting) (*features.DocumentFeatures, error) {
	if p == nil {
		return nil, errors.InvalidInput("matcher: posting is required", errors.WithOp("matcher.put_posting"))
	}
	f, err := s.builder.FromRecord(ctx, p.ID, p.Record)
	if err != nil {
		return nil, err
	}
	prev, err := s.previous(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutPosting(ctx, p); err != nil {
		return nil, err
	}
	f.OwnerID = p.ID
	if err := s.store.UpsertPostingFeatures(ctx, f); err != nil {
		s.restore(ctx, p.ID, prev)
		return nil, err
	}
	s.logger.Debug("posting_saved", logging.Fields{"posting": p.ID, "terms": len(f.Terms)})
	return f, nil
}

// previous returns the stored posting id is about to replace, or nil when
// there is none.
func (s *Service) previous(ctx context.Context, id int64) (*store.Posting, error) {
	if id == 0 {
		return nil, nil
	}
	p, err := s.store.GetPosting(ctx, id)
	if errors.Is(err, errors.ErrCodeNotFound) {
		return nil, nil
	}
	return p, err
}

// restore undoes a posting write whose feature record could not be saved:
// a new posting is removed, a replaced one gets its old content back.
func (s *Service) restore(ctx context.Context, id int64, prev *store.Posting) {
	var err error
	if prev == nil {
		err = s.store.DeletePosting(ctx, id)
	} else {
		err = s.store.PutPosting(ctx, prev)
	}
	if err != nil {
		s.logger.Warn("posting_rollback_failed", logging.Fields{"posting": id, "error": err.Error()})
	}
}

// UpsertPostingFromRecord rebuilds the feature record of posting id from
// rec. The posting itself is left as stored.
func (s *Service) UpsertPostingFromRecord(ctx context.Context, id int64, rec features.Record) (*features.DocumentFeatures, error) {
	f, err := s.builder.FromRecord(ctx, id, rec)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertPostingFeatures(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// RefreshPosting rebuilds the feature record of a stored posting, e.g.
// after the embedding model changed.
func (s *Service) RefreshPosting(ctx context.Context, id int64) (*features.DocumentFeatures, error) {
	p, err := s.store.GetPosting(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.UpsertPostingFromRecord(ctx, id, p.Record)
}

// DeletePosting removes a posting together with its feature record.
func (s *Service) DeletePosting(ctx context.Context, id int64) error {
	return s.store.DeletePosting(ctx, id)
}

// ListPostings is the plain unranked listing.
func (s *Service) ListPostings(ctx context.Context, offset, limit int) ([]store.Posting, error) {
	return s.store.ListPostings(ctx, offset, limit)
}

// --- Ranking ---

// RankOptions tunes one ranking request. Zero values select the engine
// configuration.
type RankOptions struct {
	// CandidateIDs restricts the pool. Nil ranks the whole listing up to
	// the configured pool limit; an empty non-nil slice ranks nothing.
	CandidateIDs []int64
	TopK         int
	Weights      *ranking.Weights
	// WithMetrics fills Semantic and Lexical on every candidate.
	WithMetrics bool
}

// RankedCandidate is one posting in a ranking.
type RankedCandidate struct {
	PostingID    int64          `json:"posting_id"`
	Posting      *store.Posting `json:"posting,omitempty"`
	Score        float64        `json:"score"`
	OverlapTerms []string       `json:"overlap_terms"`
	Semantic     *float64       `json:"semantic,omitempty"`
	Lexical      *float64       `json:"lexical,omitempty"`
}

// Ranking is the answer to RankPostingsForResume. Fallback is set when the
// owner had no résumé record and Candidates is the plain listing.
type Ranking struct {
	TraceID    string            `json:"trace_id"`
	Fallback   bool              `json:"fallback"`
	Candidates []RankedCandidate `json:"candidates"`
}

// RankPostingsForResume ranks postings against the résumé of ownerID,
// best first. Postings with no feature record or empty text are left out.
func (s *Service) RankPostingsForResume(ctx context.Context, ownerID int64, opts RankOptions) (out *Ranking, err error) {
	start := time.Now()
	traceID := s.newID()
	logger := s.logger.WithTraceID(traceID)

	cfg := s.engine.Config()
	w := cfg.Weights
	if opts.Weights != nil {
		w = *opts.Weights
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = cfg.TopK
	}

	ctx, span := s.tracer.StartRankingSpan(ctx)
	spanOpts := telemetry.RankingSpanOptions{OwnerID: ownerID, Alpha: w.Alpha, Beta: w.Beta, Gamma: w.Gamma}
	defer func() {
		if out != nil {
			spanOpts.Returned = len(out.Candidates)
			spanOpts.Fallback = out.Fallback
		}
		s.tracer.EndRankingSpan(span, spanOpts, err)
	}()

	if err := w.Validate(); err != nil {
		return nil, err
	}

	query, err := s.store.GetResumeFeatures(ctx, ownerID)
	switch {
	case store.IsNotFound(err):
		return s.fallback(ctx, logger, traceID, ownerID, topK, "no resume features")
	case err != nil:
		return nil, errors.Wrap(err, "loading résumé features", errors.WithOp(opRank), errors.WithOwner(ownerID))
	case query.Empty():
		return s.fallback(ctx, logger, traceID, ownerID, topK, "empty resume text")
	}

	cands, postings, err := s.pool(ctx, opts.CandidateIDs, cfg.PoolLimit)
	if err != nil {
		return nil, err
	}
	spanOpts.Pool = len(cands)

	out = &Ranking{TraceID: traceID, Candidates: []RankedCandidate{}}
	if len(cands) > 0 {
		if out.Candidates, err = s.rank(ctx, query, cands, postings, w, topK, opts.WithMetrics); err != nil {
			return nil, err
		}
	}

	elapsed := time.Since(start)
	logger.RankingCompleted(ownerID, len(cands), len(out.Candidates), elapsed)
	s.events.Export(telemetry.Event{
		Name:    "ranking_completed",
		TraceID: traceID,
		Data: map[string]interface{}{
			"owner":       ownerID,
			"pool":        len(cands),
			"returned":    len(out.Candidates),
			"duration_ms": elapsed.Milliseconds(),
		},
	})
	return out, nil
}

func (s *Service) rank(ctx context.Context, query *features.DocumentFeatures, cands []ranking.Candidate,
	postings map[int64]*store.Posting, w ranking.Weights, topK int, withMetrics bool) ([]RankedCandidate, error) {
	idx, err := s.engine.BuildIndex(ctx, cands)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	res, err := s.engine.Rank(ctx, ranking.Query{
		Text:      query.Text,
		Terms:     query.Terms,
		Embedding: query.Embedding,
	}, idx, w, topK)
	if err != nil {
		return nil, err
	}

	top := s.engine.Config().OverlapTop
	overlap := s.engine.Overlap()
	ranked := make([]RankedCandidate, 0, res.Len())
	for r, i := range res.Order {
		c := idx.Candidate(i)
		rc := RankedCandidate{
			PostingID:    c.ID,
			Score:        ranking.Round4(res.Combined[r]),
			OverlapTerms: overlap.Pretty(query.Terms, c.Terms, top),
		}
		if withMetrics {
			sem, lex := ranking.Round4(res.Semantic[r]), ranking.Round4(res.Lexical[r])
			rc.Semantic, rc.Lexical = &sem, &lex
		}
		if rc.Posting, err = s.posting(ctx, postings, c.ID); err != nil {
			return nil, err
		}
		ranked = append(ranked, rc)
	}
	return ranked, nil
}

// pool loads the candidate records. With ids nil the pool is the first
// limit postings of the listing, which are also returned by ID.
func (s *Service) pool(ctx context.Context, ids []int64, limit int) ([]ranking.Candidate, map[int64]*store.Posting, error) {
	var postings map[int64]*store.Posting
	if ids == nil {
		list, err := s.store.ListPostings(ctx, 0, limit)
		if err != nil {
			return nil, nil, err
		}
		postings = make(map[int64]*store.Posting, len(list))
		ids = make([]int64, len(list))
		for i := range list {
			postings[list[i].ID] = &list[i]
			ids[i] = list[i].ID
		}
	} else {
		ids = unique(ids)
	}
	if len(ids) == 0 {
		return nil, postings, nil
	}

	recs, err := s.store.GetPostingFeatures(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	cands := make([]ranking.Candidate, 0, len(recs))
	for _, f := range recs {
		if f.Empty() {
			continue
		}
		cands = append(cands, ranking.Candidate{
			ID:        f.OwnerID,
			Text:      f.Text,
			Terms:     f.Terms,
			Embedding: f.Embedding,
		})
	}
	return cands, postings, nil
}

// unique drops repeated ids, keeping first-seen order.
func unique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) posting(ctx context.Context, known map[int64]*store.Posting, id int64) (*store.Posting, error) {
	if p, ok := known[id]; ok {
		return p, nil
	}
	return s.store.GetPosting(ctx, id)
}

func (s *Service) fallback(ctx context.Context, logger *logging.Logger, traceID string, ownerID int64, topK int, reason string) (*Ranking, error) {
	logger.RankingFallback(ownerID, reason)
	list, err := s.store.ListPostings(ctx, 0, topK)
	if err != nil {
		return nil, err
	}
	out := &Ranking{
		TraceID:    traceID,
		Fallback:   true,
		Candidates: make([]RankedCandidate, len(list)),
	}
	for i := range list {
		out.Candidates[i] = RankedCandidate{
			PostingID:    list[i].ID,
			Posting:      &list[i],
			OverlapTerms: []string{},
		}
	}
	s.events.Export(telemetry.Event{
		Name:    "ranking_fallback",
		TraceID: traceID,
		Data:    map[string]interface{}{"owner": ownerID, "reason": reason, "returned": len(list)},
	})
	return out, nil
}
