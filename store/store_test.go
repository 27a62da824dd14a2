package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/features"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends(t *testing.T) []backend {
	bs := []backend{
		{"memory", func(t *testing.T) Store { return NewMemory() }},
		{"sqlite", func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "matchkit.db"))
			require.NoError(t, err)
			return s
		}},
	}
	if dsn := os.Getenv("MATCHKIT_TEST_PG_DSN"); dsn != "" {
		bs = append(bs, backend{"postgres", func(t *testing.T) Store {
			s, err := OpenPostgres(context.Background(), dsn, 4)
			require.NoError(t, err)
			_, err = s.pool.Exec(context.Background(), `TRUNCATE postings, resume_features, posting_features RESTART IDENTITY CASCADE`)
			require.NoError(t, err)
			return s
		}})
	}
	return bs
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			fn(t, s)
		})
	}
}

func resumeFeatures(owner int64) *features.DocumentFeatures {
	return &features.DocumentFeatures{
		OwnerID:   owner,
		Text:      "Python backend developer",
		Terms:     []string{"python", "backend developer"},
		Embedding: []float32{0.25, -0.5, 0.125},
		UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestResumeFeaturesLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.GetResumeFeatures(ctx, 7)
		assert.True(t, IsNotFound(err), "got %v", err)

		require.NoError(t, s.UpsertResumeFeatures(ctx, resumeFeatures(7)))
		got, err := s.GetResumeFeatures(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, resumeFeatures(7), got)

		replaced := resumeFeatures(7)
		replaced.Text = "Data engineer"
		replaced.Terms = []string{"spark"}
		replaced.Embedding = []float32{1, 0, 0}
		require.NoError(t, s.UpsertResumeFeatures(ctx, replaced))
		got, err = s.GetResumeFeatures(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, replaced, got)

		require.NoError(t, s.DeleteResumeFeatures(ctx, 7))
		_, err = s.GetResumeFeatures(ctx, 7)
		assert.True(t, IsNotFound(err))
		assert.NoError(t, s.DeleteResumeFeatures(ctx, 7), "deleting twice is fine")
	})
}

func TestUpsertRejectsInvalidRecords(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		assert.True(t, errors.Is(s.UpsertResumeFeatures(ctx, nil), errors.ErrCodeInvalidInput))
		assert.True(t, errors.Is(s.UpsertResumeFeatures(ctx, &features.DocumentFeatures{}), errors.ErrCodeInvalidInput))
		assert.True(t, errors.Is(s.UpsertPostingFeatures(ctx, nil), errors.ErrCodeInvalidInput))
	})
}

func TestPostingFeaturesRequirePosting(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		err := s.UpsertPostingFeatures(context.Background(), resumeFeatures(99))
		assert.True(t, IsNotFound(err), "got %v", err)
	})
}

func TestPostingsAndCascade(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		a := &Posting{Company: "Acme", Record: features.Record{"titulo": "Backend Engineer", "salario": 25000.0}}
		b := &Posting{Company: "Globex", Record: features.Record{"titulo": "Marketing Coordinator"}}
		require.NoError(t, s.PutPosting(ctx, a))
		require.NoError(t, s.PutPosting(ctx, b))
		require.NotZero(t, a.ID)
		require.Greater(t, b.ID, a.ID)
		assert.False(t, a.CreatedAt.IsZero())

		got, err := s.GetPosting(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.Company)
		assert.Equal(t, "Backend Engineer", got.Record["titulo"])
		assert.Equal(t, 25000.0, got.Record["salario"])

		fa := resumeFeatures(a.ID)
		fb := resumeFeatures(b.ID)
		fb.Text = "Marketing Coordinator"
		fb.Terms = []string{}
		fb.Embedding = []float32{}
		require.NoError(t, s.UpsertPostingFeatures(ctx, fa))
		require.NoError(t, s.UpsertPostingFeatures(ctx, fb))

		feats, err := s.GetPostingFeatures(ctx, []int64{b.ID, 12345, a.ID})
		require.NoError(t, err)
		require.Len(t, feats, 2)
		assert.Equal(t, b.ID, feats[0].OwnerID)
		assert.Equal(t, a.ID, feats[1].OwnerID)
		assert.Empty(t, feats[0].Embedding)
		assert.NotNil(t, feats[0].Embedding)
		assert.Equal(t, fa.Embedding, feats[1].Embedding)

		require.NoError(t, s.DeletePosting(ctx, a.ID))
		_, err = s.GetPosting(ctx, a.ID)
		assert.True(t, IsNotFound(err))
		feats, err = s.GetPostingFeatures(ctx, []int64{a.ID, b.ID})
		require.NoError(t, err)
		require.Len(t, feats, 1, "deleting a posting removes its features")
		assert.Equal(t, b.ID, feats[0].OwnerID)

		feats, err = s.GetPostingFeatures(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, feats)
	})
}

func TestPutPostingReplaceKeepsCreatedAt(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		p := &Posting{ID: 40, Company: "Acme", CreatedAt: created, Record: features.Record{"titulo": "v1"}}
		require.NoError(t, s.PutPosting(ctx, p))

		p2 := &Posting{ID: 40, Company: "Acme Corp", Record: features.Record{"titulo": "v2"}}
		require.NoError(t, s.PutPosting(ctx, p2))
		assert.True(t, created.Equal(p2.CreatedAt), "created_at %v", p2.CreatedAt)

		got, err := s.GetPosting(ctx, 40)
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", got.Company)
		assert.Equal(t, "v2", got.Record["titulo"])

		next := &Posting{Company: "Initech"}
		require.NoError(t, s.PutPosting(ctx, next))
		assert.Greater(t, next.ID, int64(40))
	})
}

func TestListPostingsPaging(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var ids []int64
		for i := 0; i < 5; i++ {
			p := &Posting{Company: "c", Record: features.Record{"titulo": "t"}}
			require.NoError(t, s.PutPosting(ctx, p))
			ids = append(ids, p.ID)
		}

		page, err := s.ListPostings(ctx, 1, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, ids[1], page[0].ID)
		assert.Equal(t, ids[2], page[1].ID)

		page, err = s.ListPostings(ctx, 4, 10)
		require.NoError(t, err)
		assert.Len(t, page, 1)

		page, err = s.ListPostings(ctx, 10, 10)
		require.NoError(t, err)
		assert.NotNil(t, page)
		assert.Empty(t, page)

		_, err = s.ListPostings(ctx, -1, 10)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	})
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	f := resumeFeatures(1)
	require.NoError(t, m.UpsertResumeFeatures(ctx, f))

	f.Terms[0] = "mutated"
	got, err := m.GetResumeFeatures(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "python", got.Terms[0])

	got.Embedding[0] = 42
	again, err := m.GetResumeFeatures(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), again.Embedding[0])
}

func TestMemoryConcurrentUpsertIsAtomic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := &features.DocumentFeatures{OwnerID: 1, Text: "a", Terms: []string{"a"}, Embedding: []float32{1}}
	b := &features.DocumentFeatures{OwnerID: 1, Text: "b", Terms: []string{"b"}, Embedding: []float32{2}}
	require.NoError(t, m.UpsertResumeFeatures(ctx, a))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				rec := a
				if j%2 == 1 {
					rec = b
				}
				_ = m.UpsertResumeFeatures(ctx, rec)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				got, err := m.GetResumeFeatures(ctx, 1)
				if err != nil {
					t.Error(err)
					return
				}
				if got.Terms[0] != got.Text || (got.Text == "a") != (got.Embedding[0] == 1) {
					t.Errorf("torn record: %+v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	_, err := m.ListPostings(context.Background(), 0, 10)
	assert.True(t, errors.Is(err, errors.ErrCodeStoreUnavailable))
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(context.Background(), Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), Config{Driver: DriverPostgres})
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
	_, err = Open(context.Background(), Config{Driver: "mongo"})
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}
