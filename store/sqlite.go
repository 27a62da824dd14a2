package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/features"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLite implements Store on a single SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	const op = "store.open_sqlite"
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeStoreUnavailable, "opening sqlite", errors.WithOp(op))
	}
	// SQLite: single writer, and the foreign_keys pragma is per connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.WrapWithCode(err, errors.ErrCodeStoreUnavailable, "preparing sqlite schema", errors.WithOp(op))
		}
	}
	return &SQLite{db: db}, nil
}

// GetResumeFeatures implements FeatureStore.
func (s *SQLite) GetResumeFeatures(ctx context.Context, ownerID int64) (*features.DocumentFeatures, error) {
	const op = "store.get_resume_features"
	row := s.db.QueryRowContext(ctx,
		`SELECT owner_id, text, terms, embedding, updated_at FROM resume_features WHERE owner_id = ?`, ownerID)
	f, err := scanSQLiteFeatures(row)
	if err == sql.ErrNoRows {
		return nil, notFound(op, "résumé features for owner", ownerID)
	}
	if err != nil {
		return nil, storeFailed(err, op, "reading résumé features")
	}
	return f, nil
}

// sqliteChunk stays well under SQLite's bound-parameter limit.
const sqliteChunk = 500

// GetPostingFeatures implements FeatureStore.
func (s *SQLite) GetPostingFeatures(ctx context.Context, ids []int64) ([]*features.DocumentFeatures, error) {
	const op = "store.get_posting_features"
	byID := make(map[int64]*features.DocumentFeatures, len(ids))
	for start := 0; start < len(ids); start += sqliteChunk {
		end := start + sqliteChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := `SELECT posting_id, text, terms, embedding, updated_at FROM posting_features WHERE posting_id IN (` +
			strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",") + `)`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, storeFailed(err, op, "reading posting features")
		}
		for rows.Next() {
			f, err := scanSQLiteFeatures(rows)
			if err != nil {
				rows.Close()
				return nil, storeFailed(err, op, "decoding posting features")
			}
			byID[f.OwnerID] = f
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, storeFailed(err, op, "reading posting features")
		}
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
func (s *SQLite) UpsertResumeFeatures(ctx context.Context, f *features.DocumentFeatures) error {
	const op = "store.upsert_resume_features"
	if err := validateFeatures(op, f); err != nil {
		return err
	}
	return s.upsert(ctx, op, `INSERT INTO resume_features (owner_id, text, terms, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			text = excluded.text, terms = excluded.terms,
			embedding = excluded.embedding, updated_at = excluded.updated_at`, stamp(f))
}

// UpsertPostingFeatures implements FeatureStore.
func (s *SQLite) UpsertPostingFeatures(ctx context.Context, f *features.DocumentFeatures) error {
	const op = "store.upsert_posting_features"
	if err := validateFeatures(op, f); err != nil {
		return err
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM postings WHERE id = ?`, f.OwnerID).Scan(&exists)
	if err == sql.ErrNoRows {
		return notFound(op, "posting", f.OwnerID)
	}
	if err != nil {
		return storeFailed(err, op, "checking posting")
	}
	return s.upsert(ctx, op, `INSERT INTO posting_features (posting_id, text, terms, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(posting_id) DO UPDATE SET
			text = excluded.text, terms = excluded.terms,
			embedding = excluded.embedding, updated_at = excluded.updated_at`, stamp(f))
}

func (s *SQLite) upsert(ctx context.Context, op, query string, f *features.DocumentFeatures) error {
	terms, err := json.Marshal(f.Terms)
	if err != nil {
		return storeFailed(err, op, "encoding terms")
	}
	emb, err := json.Marshal(f.Embedding)
	if err != nil {
		return storeFailed(err, op, "encoding embedding")
	}
	_, err = s.db.ExecContext(ctx, query, f.OwnerID, f.Text, string(terms), string(emb), f.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return storeFailed(err, op, "writing features")
}

// DeleteResumeFeatures implements FeatureStore.
func (s *SQLite) DeleteResumeFeatures(ctx context.Context, ownerID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM resume_features WHERE owner_id = ?`, ownerID)
	return storeFailed(err, "store.delete_resume_features", "deleting résumé features")
}

// PutPosting implements PostingStore.
func (s *SQLite) PutPosting(ctx context.Context, p *Posting) error {
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
	created := p.CreatedAt.UTC().Format(time.RFC3339Nano)

	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO postings (company, record, created_at) VALUES (?, ?, ?)`,
			p.Company, string(record), created)
		if err != nil {
			return storeFailed(err, op, "inserting posting")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storeFailed(err, op, "reading posting id")
		}
		p.ID = id
		return nil
	}

	// Keep the original creation time on replace.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO postings (id, company, record, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET company = excluded.company, record = excluded.record`,
		p.ID, p.Company, string(record), created)
	if err != nil {
		return storeFailed(err, op, "writing posting")
	}
	err = s.db.QueryRowContext(ctx, `SELECT created_at FROM postings WHERE id = ?`, p.ID).Scan(sqliteTime{&p.CreatedAt})
	return storeFailed(err, op, "reading posting")
}

// GetPosting implements PostingStore.
func (s *SQLite) GetPosting(ctx context.Context, id int64) (*Posting, error) {
	const op = "store.get_posting"
	p, err := scanSQLitePosting(s.db.QueryRowContext(ctx,
		`SELECT id, company, record, created_at FROM postings WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound(op, "posting", id)
	}
	if err != nil {
		return nil, storeFailed(err, op, "reading posting")
	}
	return p, nil
}

// ListPostings implements PostingStore.
func (s *SQLite) ListPostings(ctx context.Context, offset, limit int) ([]Posting, error) {
	const op = "store.list_postings"
	if err := validatePage(op, offset, limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company, record, created_at FROM postings ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, storeFailed(err, op, "listing postings")
	}
	defer rows.Close()

	out := []Posting{}
	for rows.Next() {
		p, err := scanSQLitePosting(rows)
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

// DeletePosting implements PostingStore. The feature record goes with it.
func (s *SQLite) DeletePosting(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM postings WHERE id = ?`, id)
	return storeFailed(err, "store.delete_posting", "deleting posting")
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// sqliteTime scans an RFC 3339 TEXT column.
type sqliteTime struct{ t *time.Time }

func (st sqliteTime) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		*st.t = v.UTC()
		return nil
	default:
		return errors.Newf(errors.ErrCodeStoreFailed, "unexpected time column type %T", src)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*st.t = t.UTC()
	return nil
}

func scanSQLiteFeatures(row rowScanner) (*features.DocumentFeatures, error) {
	var (
		f            features.DocumentFeatures
		terms, embed string
	)
	if err := row.Scan(&f.OwnerID, &f.Text, &terms, &embed, sqliteTime{&f.UpdatedAt}); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(terms), &f.Terms); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(embed), &f.Embedding); err != nil {
		return nil, err
	}
	return f.Clone(), nil
}

func scanSQLitePosting(row rowScanner) (*Posting, error) {
	var (
		p      Posting
		record string
	)
	if err := row.Scan(&p.ID, &p.Company, &record, sqliteTime{&p.CreatedAt}); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(record), &p.Record); err != nil {
		return nil, err
	}
	return &p, nil
}

func recordOrEmpty(r features.Record) features.Record {
	if r == nil {
		return features.Record{}
	}
	return r
}
