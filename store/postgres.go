package store

import (
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/features"
)

//go:embed schema/postgres.sql
var postgresSchema string

// foreignKeyViolation is the SQLSTATE raised when a posting is missing.
const foreignKeyViolation = "23503"

// Postgres implements Store on PostgreSQL with the pgvector extension.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*Postgres, error) {
	const op = "store.open_postgres"
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeConfigInvalid, "parsing postgres dsn", errors.WithOp(op))
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeStoreUnavailable, "creating pgx pool", errors.WithOp(op))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WrapWithCode(err, errors.ErrCodeStoreUnavailable, "pinging postgres", errors.WithOp(op))
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, errors.WrapWithCode(err, errors.ErrCodeStoreUnavailable, "applying postgres schema", errors.WithOp(op))
	}
	return &Postgres{pool: pool}, nil
}

// GetResumeFeatures implements FeatureStore.
func (s *Postgres) GetResumeFeatures(ctx context.Context, ownerID int64) (*features.DocumentFeatures, error) {
	const op = "store.get_resume_features"
	f, err := scanPGFeatures(s.pool.QueryRow(ctx,
		`SELECT owner_id, text, terms, embedding::text, updated_at FROM resume_features WHERE owner_id = $1`, ownerID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(op, "résumé features for owner", ownerID)
	}
	if err != nil {
		return nil, storeFailed(err, op, "reading résumé features")
	}
	return f, nil
}

// GetPostingFeatures implements FeatureStore.
func (s *Postgres) GetPostingFeatures(ctx context.Context, ids []int64) ([]*features.DocumentFeatures, error) {
	const op = "store.get_posting_features"
	if len(ids) == 0 {
		return []*features.DocumentFeatures{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT posting_id, text, terms, embedding::text, updated_at FROM posting_features WHERE posting_id = ANY($1)`, ids)
	if err != nil {
		return nil, storeFailed(err, op, "reading posting features")
	}
	defer rows.Close()

	byID := make(map[int64]*features.DocumentFeatures, len(ids))
	for rows.Next() {
		f, err := scanPGFeatures(rows)
		if err != nil {
			return nil, storeFailed(err, op, "decoding posting features")
		}
		byID[f.OwnerID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailed(err, op, "reading posting features")
	}

	out := make([]*features.DocumentFeatures, 0, len(byID))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// UpsertResumeFeatures implements FeatureStore.
func (s *Postgres) UpsertResumeFeatures(ctx context.Context, f *features.DocumentFeatures) error {
	const op = "store.upsert_resume_features"
	if err := validateFeatures(op, f); err != nil {
		return err
	}
	return s.upsert(ctx, op, `INSERT INTO resume_features (owner_id, text, terms, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE SET
			text = EXCLUDED.text, terms = EXCLUDED.terms,
			embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at`, stamp(f))
}

// UpsertPostingFeatures implements FeatureStore.
func (s *Postgres) UpsertPostingFeatures(ctx context.Context, f *features.DocumentFeatures) error {
	const op = "store.upsert_posting_features"
	if err := validateFeatures(op, f); err != nil {
		return err
	}
	err := s.upsert(ctx, op, `INSERT INTO posting_features (posting_id, text, terms, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (posting_id) DO UPDATE SET
			text = EXCLUDED.text, terms = EXCLUDED.terms,
			embedding = EXCLUDED.embedding, updated_at = EXCLUDED.updated_at`, stamp(f))
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return notFound(op, "posting", f.OwnerID)
	}
	return err
}

func (s *Postgres) upsert(ctx context.Context, op, query string, f *features.DocumentFeatures) error {
	terms, err := json.Marshal(f.Terms)
	if err != nil {
		return storeFailed(err, op, "encoding terms")
	}
	// pgvector rejects zero-dimension vectors; blank records store NULL.
	var emb interface{}
	if len(f.Embedding) > 0 {
		emb = pgvector.NewVector(f.Embedding)
	}
	_, err = s.pool.Exec(ctx, query, f.OwnerID, f.Text, terms, emb, f.UpdatedAt)
	return storeFailed(err, op, "writing features")
}

// DeleteResumeFeatures implements FeatureStore.
func (s *Postgres) DeleteResumeFeatures(ctx context.Context, ownerID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM resume_features WHERE owner_id = $1`, ownerID)
	return storeFailed(err, "store.delete_resume_features", "deleting résumé features")
}

// PutPosting implements PostingStore.
func (s *Postgres) PutPosting(ctx context.Context, p *Posting) error {
	const op = "store.put_posting"
	if p == nil {
		return errors.InvalidInput("nil posting", errors.WithOp(op))
	}
	if p.ID < 0 {
		return errors.InvalidInput("posting id must not be negative", errors.WithOp(op))
	}
	record, err := json.Marshal(recordOrEmpty(p.Record))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeInvalidInput, "encoding posting record", errors.WithOp(op))
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	if p.ID == 0 {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO postings (company, record, created_at) VALUES ($1, $2, $3) RETURNING id`,
			p.Company, record, p.CreatedAt).Scan(&p.ID)
		return storeFailed(err, op, "inserting posting")
	}

	// Explicit ids bypass the sequence, so move it past them.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeFailed(err, op, "beginning transaction")
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO postings (id, company, record, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET company = EXCLUDED.company, record = EXCLUDED.record
		 RETURNING created_at`,
		p.ID, p.Company, record, p.CreatedAt).Scan(&p.CreatedAt)
	if err != nil {
		return storeFailed(err, op, "writing posting")
	}
	if _, err := tx.Exec(ctx,
		`SELECT setval(pg_get_serial_sequence('postings', 'id'), GREATEST((SELECT MAX(id) FROM postings), 1))`); err != nil {
		return storeFailed(err, op, "advancing posting sequence")
	}
	return storeFailed(tx.Commit(ctx), op, "committing posting")
}

// GetPosting implements PostingStore.
func (s *Postgres) GetPosting(ctx context.Context, id int64) (*Posting, error) {
	const op = "store.get_posting"
	p, err := scanPGPosting(s.pool.QueryRow(ctx,
		`SELECT id, company, record, created_at FROM postings WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(op, "posting", id)
	}
	if err != nil {
		return nil, storeFailed(err, op, "reading posting")
	}
	return p, nil
}

// ListPostings implements PostingStore.
func (s *Postgres) ListPostings(ctx context.Context, offset, limit int) ([]Posting, error) {
	const op = "store.list_postings"
	if err := validatePage(op, offset, limit); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, company, record, created_at FROM postings ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, storeFailed(err, op, "listing postings")
	}
	defer rows.Close()

	out := []Posting{}
	for rows.Next() {
		p, err := scanPGPosting(rows)
		if err != nil {
			return nil, storeFailed(err, op, "decoding posting")
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailed(err, op, "listing postings")
	}
	return out, nil
}

// DeletePosting implements PostingStore. ON DELETE CASCADE removes the
// feature record.
func (s *Postgres) DeletePosting(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM postings WHERE id = $1`, id)
	return storeFailed(err, "store.delete_posting", "deleting posting")
}

// Close implements Store.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func scanPGFeatures(row pgx.Row) (*features.DocumentFeatures, error) {
	var (
		f     features.DocumentFeatures
		terms []byte
		emb   *string
	)
	if err := row.Scan(&f.OwnerID, &f.Text, &terms, &emb, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(terms, &f.Terms); err != nil {
		return nil, err
	}
	if emb != nil {
		var v pgvector.Vector
		if err := v.Scan(*emb); err != nil {
			return nil, err
		}
		f.Embedding = v.Slice()
	}
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f.Clone(), nil
}

func scanPGPosting(row pgx.Row) (*Posting, error) {
	var (
		p      Posting
		record []byte
	)
	if err := row.Scan(&p.ID, &p.Company, &record, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(record, &p.Record); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
