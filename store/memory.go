package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/features"
)

// Memory implements Store in process memory. Records are cloned on the way
// in and out so callers never share slices with the store.
type Memory struct {
	mu              sync.RWMutex
	postings        map[int64]*Posting
	resumeFeatures  map[int64]*features.DocumentFeatures
	postingFeatures map[int64]*features.DocumentFeatures
	nextID          int64
	closed          atomic.Bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		postings:        make(map[int64]*Posting),
		resumeFeatures:  make(map[int64]*features.DocumentFeatures),
		postingFeatures: make(map[int64]*features.DocumentFeatures),
	}
}

var errClosed = errors.New(errors.ErrCodeStoreUnavailable, "store closed")

func (m *Memory) check(ctx context.Context, op string) error {
	if m.closed.Load() {
		return errors.Wrap(errClosed, "store closed", errors.WithOp(op))
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, op, errors.WithOp(op))
	}
	return nil
}

// GetResumeFeatures implements FeatureStore.
func (m *Memory) GetResumeFeatures(ctx context.Context, ownerID int64) (*features.DocumentFeatures, error) {
	const op = "store.get_resume_features"
	if err := m.check(ctx, op); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.resumeFeatures[ownerID]
	if !ok {
		return nil, notFound(op, "résumé features for owner", ownerID)
	}
	return f.Clone(), nil
}

// GetPostingFeatures implements FeatureStore.
func (m *Memory) GetPostingFeatures(ctx context.Context, ids []int64) ([]*features.DocumentFeatures, error) {
	if err := m.check(ctx, "store.get_posting_features"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*features.DocumentFeatures, 0, len(ids))
	for _, id := range ids {
		if f, ok := m.postingFeatures[id]; ok {
			out = append(out, f.Clone())
		}
	}
	return out, nil
}

// UpsertResumeFeatures implements FeatureStore.
func (m *Memory) UpsertResumeFeatures(ctx context.Context, f *features.DocumentFeatures) error {
	const op = "store.upsert_resume_features"
	if err := validateFeatures(op, f); err != nil {
		return err
	}
	if err := m.check(ctx, op); err != nil {
		return err
	}
	rec := stamp(f)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeFeatures[rec.OwnerID] = rec
	return nil
}

// UpsertPostingFeatures implements FeatureStore.
func (m *Memory) UpsertPostingFeatures(ctx context.Context, f *features.DocumentFeatures) error {
	const op = "store.upsert_posting_features"
	if err := validateFeatures(op, f); err != nil {
		return err
	}
	if err := m.check(ctx, op); err != nil {
		return err
	}
	rec := stamp(f)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.postings[rec.OwnerID]; !ok {
		return notFound(op, "posting", rec.OwnerID)
	}
	m.postingFeatures[rec.OwnerID] = rec
	return nil
}

// DeleteResumeFeatures implements FeatureStore.
func (m *Memory) DeleteResumeFeatures(ctx context.Context, ownerID int64) error {
	if err := m.check(ctx, "store.delete_resume_features"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resumeFeatures, ownerID)
	return nil
}

// PutPosting implements PostingStore.
func (m *Memory) PutPosting(ctx context.Context, p *Posting) error {
	const op = "store.put_posting"
	if p == nil {
		return errors.InvalidInput("nil posting", errors.WithOp(op))
	}
	if p.ID < 0 {
		return errors.InvalidInput("posting id must not be negative", errors.WithOp(op))
	}
	if err := m.check(ctx, op); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		m.nextID++
		p.ID = m.nextID
	} else if p.ID > m.nextID {
		m.nextID = p.ID
	}
	if existing, ok := m.postings[p.ID]; ok && p.CreatedAt.IsZero() {
		p.CreatedAt = existing.CreatedAt
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.postings[p.ID] = clonePosting(p)
	return nil
}

// GetPosting implements PostingStore.
func (m *Memory) GetPosting(ctx context.Context, id int64) (*Posting, error) {
	const op = "store.get_posting"
	if err := m.check(ctx, op); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.postings[id]
	if !ok {
		return nil, notFound(op, "posting", id)
	}
	return clonePosting(p), nil
}

// ListPostings implements PostingStore.
func (m *Memory) ListPostings(ctx context.Context, offset, limit int) ([]Posting, error) {
	const op = "store.list_postings"
	if err := validatePage(op, offset, limit); err != nil {
		return nil, err
	}
	if err := m.check(ctx, op); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.postings))
	for id := range m.postings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []Posting{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, *clonePosting(m.postings[ids[i]]))
	}
	return out, nil
}

// DeletePosting implements PostingStore.
func (m *Memory) DeletePosting(ctx context.Context, id int64) error {
	if err := m.check(ctx, "store.delete_posting"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.postings, id)
	delete(m.postingFeatures, id)
	return nil
}

// Close implements Store. Calls after Close fail with STORE_UNAVAILABLE.
func (m *Memory) Close() error {
	m.closed.Store(true)
	return nil
}

// clonePosting copies the posting and the top level of its record.
func clonePosting(p *Posting) *Posting {
	c := *p
	if p.Record != nil {
		c.Record = make(features.Record, len(p.Record))
		for k, v := range p.Record {
			c.Record[k] = v
		}
	}
	return &c
}
