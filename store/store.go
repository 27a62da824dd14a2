package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/features"
)

// Posting is a job opening as registered by the service layer.
type Posting struct {
	ID        int64           `json:"id"`
	Company   string          `json:"company"`
	Record    features.Record `json:"record"`
	CreatedAt time.Time       `json:"created_at"`
}

// FeatureStore reads and writes feature records.
type FeatureStore interface {
	// GetResumeFeatures returns the résumé record of ownerID, or a
	// NOT_FOUND error.
	GetResumeFeatures(ctx context.Context, ownerID int64) (*features.DocumentFeatures, error)

	// GetPostingFeatures returns the records of the given postings in ids
	// order. Postings without a record are skipped.
	GetPostingFeatures(ctx context.Context, ids []int64) ([]*features.DocumentFeatures, error)

	// UpsertResumeFeatures replaces the record of f.OwnerID.
	UpsertResumeFeatures(ctx context.Context, f *features.DocumentFeatures) error

	// UpsertPostingFeatures replaces the record of posting f.OwnerID. The
	// posting must exist.
	UpsertPostingFeatures(ctx context.Context, f *features.DocumentFeatures) error

	// DeleteResumeFeatures removes the résumé record of ownerID. Deleting a
	// missing record is not an error.
	DeleteResumeFeatures(ctx context.Context, ownerID int64) error
}

// PostingStore reads and writes postings.
type PostingStore interface {
	// PutPosting creates p, or replaces it when p.ID names an existing
	// posting. A zero ID is assigned by the store and written back.
	PutPosting(ctx context.Context, p *Posting) error

	// GetPosting returns a posting or a NOT_FOUND error.
	GetPosting(ctx context.Context, id int64) (*Posting, error)

	// ListPostings returns postings in ID order.
	ListPostings(ctx context.Context, offset, limit int) ([]Posting, error)

	// DeletePosting removes a posting and its feature record.
	DeletePosting(ctx context.Context, id int64) error
}

// Store is a complete backend.
type Store interface {
	FeatureStore
	PostingStore
	Close() error
}

// Drivers accepted by Config.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects a backend.
type Config struct {
	Driver string `toml:"driver"`
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN      string `toml:"dsn"`
	MaxConns int32  `toml:"max_conns"`
}

// DefaultConfig is the in-memory backend.
func DefaultConfig() Config {
	return Config{Driver: DriverMemory, MaxConns: 10}
}

// Validate checks the driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverSQLite, DriverPostgres:
		if c.DSN == "" {
			return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("store: %s requires a dsn", c.Driver))
		}
		return nil
	default:
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("store: unknown driver %q", c.Driver))
	}
}

// Open connects the backend named by cfg and prepares its schema.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverSQLite:
		s, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := OpenPostgres(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return NewMemory(), nil
	}
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, errors.ErrCodeNotFound)
}

func validateFeatures(op string, f *features.DocumentFeatures) error {
	if f == nil {
		return errors.InvalidInput("nil feature record", errors.WithOp(op))
	}
	if f.OwnerID <= 0 {
		return errors.InvalidInput(fmt.Sprintf("owner id must be positive, got %d", f.OwnerID), errors.WithOp(op))
	}
	return nil
}

func validatePage(op string, offset, limit int) error {
	if offset < 0 || limit < 0 {
		return errors.InvalidInput(fmt.Sprintf("offset and limit must not be negative (offset=%d limit=%d)", offset, limit), errors.WithOp(op))
	}
	return nil
}

// stamp fills UpdatedAt when the builder left it zero.
func stamp(f *features.DocumentFeatures) *features.DocumentFeatures {
	c := f.Clone()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	return c
}

func notFound(op, what string, id int64) error {
	return errors.NotFound(fmt.Sprintf("%s %d not found", what, id), errors.WithOp(op), errors.WithOwner(id))
}

func storeFailed(err error, op, message string) error {
	if err == nil {
		return nil
	}
	if errors.As(err) != nil {
		return errors.Wrap(err, message, errors.WithOp(op))
	}
	return errors.WrapWithCode(err, errors.ErrCodeStoreFailed, message, errors.WithOp(op))
}
