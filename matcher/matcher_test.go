package matcher

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/matchkit/config"
	"github.com/vinayprograms/matchkit/embedding"
	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/features"
	"github.com/vinayprograms/matchkit/keyphrase"
	"github.com/vinayprograms/matchkit/logging"
	"github.com/vinayprograms/matchkit/ranking"
	"github.com/vinayprograms/matchkit/store"
	"github.com/vinayprograms/matchkit/telemetry"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, []byte) (string, error) { return s.text, s.err }

type failingEmbedder struct {
	*embedding.HashEmbedder
}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New(errors.ErrCodeEmbeddingFailed, "provider down")
}

type recordingExporter struct {
	mu     sync.Mutex
	events []telemetry.Event
	closed bool
}

func (r *recordingExporter) Export(e telemetry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingExporter) Flush() error { return nil }

func (r *recordingExporter) Close() error {
	r.closed = true
	return nil
}

type fixture struct {
	svc    *Service
	store  *store.Memory
	events *recordingExporter
	logs   *bytes.Buffer
}

func newFixture(t *testing.T, ex features.TextExtractor, emb embedding.Provider) *fixture {
	t.Helper()
	if emb == nil {
		emb = embedding.NewHashEmbedder(embedding.DefaultDimension)
	}
	var logs bytes.Buffer
	logger := logging.New()
	logger.SetOutput(&logs)
	logger.SetLevel(logging.LevelDebug)

	miner, err := keyphrase.NewDefaultMiner(keyphrase.DefaultConfig())
	require.NoError(t, err)
	builder, err := features.NewBuilder(features.Options{Extractor: ex, Miner: miner, Embedder: emb, Logger: logger})
	require.NoError(t, err)
	engine, err := ranking.NewEngine(ranking.Options{Config: ranking.DefaultConfig(), Featurizer: builder, Logger: logger})
	require.NoError(t, err)

	st := store.NewMemory()
	events := &recordingExporter{}
	svc, err := New(Options{Store: st, Builder: builder, Engine: engine, Events: events, Logger: logger})
	require.NoError(t, err)
	svc.newID = func() string { return "trace-1" }
	return &fixture{svc: svc, store: st, events: events, logs: &logs}
}

func (f *fixture) posting(t *testing.T, company, title string) int64 {
	t.Helper()
	p := &store.Posting{Company: company, Record: features.Record{"titulo": title}}
	_, err := f.svc.PutPosting(context.Background(), p)
	require.NoError(t, err)
	return p.ID
}

// featureFailingStore saves postings but refuses posting feature records.
type featureFailingStore struct {
	*store.Memory
}

func (featureFailingStore) UpsertPostingFeatures(context.Context, *features.DocumentFeatures) error {
	return errors.New(errors.ErrCodeStoreUnavailable, "disk full")
}

func ids(cands []RankedCandidate) []int64 {
	out := make([]int64, len(cands))
	for i, c := range cands {
		out[i] = c.PostingID
	}
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	f := newFixture(t, nil, nil)
	_, err = New(Options{Store: f.store, Builder: f.svc.builder})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestRankEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	a := f.posting(t, "Acme", "Senior Python Backend Engineer, REST APIs")
	b := f.posting(t, "Brandly", "Marketing Coordinator")
	_, err := f.svc.UpsertResumeFromText(ctx, 7, "python backend developer")
	require.NoError(t, err)

	got, err := f.svc.RankPostingsForResume(ctx, 7, RankOptions{})
	require.NoError(t, err)
	assert.False(t, got.Fallback)
	assert.Equal(t, "trace-1", got.TraceID)
	require.Equal(t, []int64{a, b}, ids(got.Candidates))

	top := got.Candidates[0]
	assert.Greater(t, top.Score, got.Candidates[1].Score)
	assert.Equal(t, "Acme", top.Posting.Company)
	assert.NotNil(t, top.OverlapTerms)
	assert.Nil(t, top.Semantic)
	assert.Nil(t, top.Lexical)

	assert.Contains(t, f.logs.String(), "ranking_completed")
	assert.Contains(t, f.logs.String(), "trace=trace-1")
	require.Len(t, f.events.events, 1)
	assert.Equal(t, "ranking_completed", f.events.events[0].Name)
	assert.Equal(t, 2, f.events.events[0].Data["returned"])
}

func TestRankWithMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	f.posting(t, "Acme", "Senior Python Backend Engineer, REST APIs")
	f.posting(t, "Brandly", "Marketing Coordinator")
	_, err := f.svc.UpsertResumeFromText(ctx, 7, "python backend developer")
	require.NoError(t, err)

	got, err := f.svc.RankPostingsForResume(ctx, 7, RankOptions{WithMetrics: true, TopK: 1})
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	c := got.Candidates[0]
	require.NotNil(t, c.Semantic)
	require.NotNil(t, c.Lexical)
	assert.Greater(t, *c.Lexical, 0.0)
	assert.Equal(t, ranking.Round4(*c.Semantic), *c.Semantic)
	assert.Equal(t, ranking.Round4(c.Score), c.Score)
}

func TestRankOverlapTerms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	f.posting(t, "Acme", "Desarrollador con Python, Docker y Kubernetes")
	_, err := f.svc.UpsertResumeFromText(ctx, 7, "Habilidades: Python, Docker")
	require.NoError(t, err)

	got, err := f.svc.RankPostingsForResume(ctx, 7, RankOptions{})
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.Contains(t, got.Candidates[0].OverlapTerms, "python")
	assert.Contains(t, got.Candidates[0].OverlapTerms, "docker")
}

func TestRankFallsBackWithoutResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	for i := 0; i < 4; i++ {
		f.posting(t, fmt.Sprintf("Company %d", i), fmt.Sprintf("Puesto %d", i))
	}

	got, err := f.svc.RankPostingsForResume(ctx, 99, RankOptions{TopK: 3})
	require.NoError(t, err)
	assert.True(t, got.Fallback)

	listed, err := f.svc.ListPostings(ctx, 0, 3)
	require.NoError(t, err)
	want := make([]int64, len(listed))
	for i, p := range listed {
		want[i] = p.ID
	}
	assert.Equal(t, want, ids(got.Candidates))
	for _, c := range got.Candidates {
		assert.Zero(t, c.Score)
		assert.NotNil(t, c.Posting)
	}
	assert.Contains(t, f.logs.String(), "ranking_fallback")
	require.Len(t, f.events.events, 1)
	assert.Equal(t, "ranking_fallback", f.events.events[0].Name)
}

func TestRankFallsBackAfterDeleteResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	f.posting(t, "Acme", "Python developer")
	_, err := f.svc.UpsertResumeFromText(ctx, 7, "python")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteResume(ctx, 7))

	got, err := f.svc.RankPostingsForResume(ctx, 7, RankOptions{})
	require.NoError(t, err)
	assert.True(t, got.Fallback)
	assert.Len(t, got.Candidates, 1)
}

func TestRankEmptyPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	_, err := f.svc.UpsertResumeFromText(ctx, 7, "python backend developer")
	require.NoError(t, err)

	got, err := f.svc.RankPostingsForResume(ctx, 7, RankOptions{})
	require.NoError(t, err)
	assert.False(t, got.Fallback)
	assert.NotNil(t, got.Candidates)
	assert.Empty(t, got.Candidates)

	f.posting(t, "Acme", "Python developer")
	got, err = f.svc.RankPostingsForResume(ctx, 7, RankOptions{CandidateIDs: []int64{}})
	require.NoError(t, err)
	assert.Empty(t, got.Candidates)
}

func TestRankCandidateSubset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	f.posting(t, "Acme", "Senior Python Backend Engineer")
	b := f.posting(t, "Brandly", "Marketing Coordinator")
	_, err := f.svc.UpsertResumeFromText(ctx, 7, "python backend developer")
	require.NoError(t, err)

	got, err := f.svc.RankPostingsForResume(ctx, 7, RankOptions{CandidateIDs: []int64{b, 404}})
	require.NoError(t, err)
	require.Equal(t, []int64{b}, ids(got.Candidates))
	assert.Equal(t, "Brandly", got.Candidates[0].Posting.Company)
}

func TestRankCandidateSubsetIgnoresRepeatedIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	a := f.posting(t, "Acme", "Senior Python Backend Engineer")
	b := f.posting(t, "Brandly", "Marketing Coordinator")
	_, err := f.svc.UpsertResumeFromText(ctx, 7, "python backend developer")
	require.NoError(t, err)

	got, err := f.svc.RankPostingsForResume(ctx, 7, RankOptions{CandidateIDs: []int64{a, a, b, a}})
	require.NoError(t, err)
	require.Equal(t, []int64{a, b}, ids(got.Candidates))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, unique([]int64{3, 1, 3, 2, 1}))
	assert.Empty(t, unique([]int64{}))
}

func TestRankSkipsEmptyPostings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	a := f.posting(t, "Acme", "Python developer")

	empty := &store.Posting{Company: "Blank", Record: features.Record{"empresa_id": 3}}
	fe, err := f.svc.PutPosting(ctx, empty)
	require.NoError(t, err)
	assert.Empty(t, fe.Embedding)

	_, err = f.svc.UpsertResumeFromText(ctx, 7, "python")
	require.NoError(t, err)
	got, err := f.svc.RankPostingsForResume(ctx, 7, RankOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{a}, ids(got.Candidates))
}

func TestRankRejectsNegativeWeights(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.svc.RankPostingsForResume(context.Background(), 7, RankOptions{
		Weights: &ranking.Weights{Alpha: -1, Beta: 1},
	})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestUpsertResumeFromDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubExtractor{text: "Experiencia\nDesarrollador Go y PostgreSQL"}, nil)

	got, err := f.svc.UpsertResumeFromDocument(ctx, 3, []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.OwnerID)

	stored, err := f.store.GetResumeFeatures(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, got.Text, stored.Text)
	assert.Len(t, stored.Embedding, embedding.DefaultDimension)
}

func TestUpsertResumeUnreadableStoresNothing(t *testing.T) {
	ctx := context.Background()
	unreadable := errors.Unreadable("no strategy produced text")
	f := newFixture(t, stubExtractor{err: unreadable}, nil)

	_, err := f.svc.UpsertResumeFromDocument(ctx, 3, []byte("garbage"))
	assert.True(t, errors.Is(err, errors.ErrCodeDocumentUnreadable))

	_, err = f.store.GetResumeFeatures(ctx, 3)
	assert.True(t, store.IsNotFound(err))
}

func TestPutPostingFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	emb := failingEmbedder{embedding.NewHashEmbedder(8)}
	f := newFixture(t, nil, emb)

	_, err := f.svc.PutPosting(ctx, &store.Posting{Company: "Acme", Record: features.Record{"titulo": "Go developer"}})
	assert.True(t, errors.Is(err, errors.ErrCodeEmbeddingFailed))

	listed, err := f.svc.ListPostings(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestPutPostingFeatureWriteFailureRemovesNewPosting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	mem := store.NewMemory()
	svc, err := New(Options{Store: featureFailingStore{mem}, Builder: f.svc.builder, Engine: f.svc.engine})
	require.NoError(t, err)

	_, err = svc.PutPosting(ctx, &store.Posting{Company: "Acme", Record: features.Record{"titulo": "Go developer"}})
	assert.True(t, errors.Is(err, errors.ErrCodeStoreUnavailable))

	listed, err := mem.ListPostings(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestPutPostingFeatureWriteFailureRestoresReplacedPosting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	mem := store.NewMemory()
	original := &store.Posting{ID: 5, Company: "Acme", Record: features.Record{"titulo": "Go developer"}}
	require.NoError(t, mem.PutPosting(ctx, original))

	svc, err := New(Options{Store: featureFailingStore{mem}, Builder: f.svc.builder, Engine: f.svc.engine})
	require.NoError(t, err)
	_, err = svc.PutPosting(ctx, &store.Posting{ID: 5, Company: "Brandly", Record: features.Record{"titulo": "Rust developer"}})
	require.Error(t, err)

	got, err := mem.GetPosting(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, "Go developer", got.Record["titulo"])
}

func TestPostingLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	id := f.posting(t, "Acme", "Go developer")

	before, err := f.store.GetPostingFeatures(ctx, []int64{id})
	require.NoError(t, err)
	require.Len(t, before, 1)

	_, err = f.svc.UpsertPostingFromRecord(ctx, id, features.Record{"titulo": "Rust developer"})
	require.NoError(t, err)
	after, err := f.store.GetPostingFeatures(ctx, []int64{id})
	require.NoError(t, err)
	assert.Equal(t, "Rust developer", after[0].Text)

	refreshed, err := f.svc.RefreshPosting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Go developer", refreshed.Text)

	_, err = f.svc.UpsertPostingFromRecord(ctx, 404, features.Record{"titulo": "x"})
	assert.True(t, store.IsNotFound(err))

	require.NoError(t, f.svc.DeletePosting(ctx, id))
	gone, err := f.store.GetPostingFeatures(ctx, []int64{id})
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestBuildFeaturesWithoutStoring(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubExtractor{text: "Python y Docker"}, nil)

	doc, err := f.svc.BuildFeaturesFromDocumentBytes(ctx, []byte("x"))
	require.NoError(t, err)
	assert.Contains(t, doc.Terms, "python")

	rec, err := f.svc.BuildFeaturesFromStructuredRecord(ctx, features.Record{"titulo": "   "})
	require.NoError(t, err)
	assert.Empty(t, rec.Terms)
	assert.Empty(t, rec.Embedding)

	listed, err := f.svc.ListPostings(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCloseClosesExporterAndStore(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.svc.Close())
	assert.True(t, f.events.closed)

	_, err := f.store.ListPostings(context.Background(), 0, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeStoreUnavailable))
}

func TestOpenFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Embedding.Dimension = 64

	svc, err := Open(ctx, cfg, nil, logging.Discard())
	require.NoError(t, err)
	defer svc.Close()

	p := &store.Posting{Company: "Acme", Record: features.Record{"titulo": "Python developer"}}
	_, err = svc.PutPosting(ctx, p)
	require.NoError(t, err)
	_, err = svc.UpsertResumeFromText(ctx, 1, "python")
	require.NoError(t, err)

	got, err := svc.RankPostingsForResume(ctx, 1, RankOptions{})
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, p.ID, got.Candidates[0].PostingID)
	assert.True(t, strings.Count(got.TraceID, "-") == 4, "trace id should be a uuid")
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "mongo"
	_, err := Open(context.Background(), cfg, nil, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}
