package embedding

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/logging"
	"github.com/vinayprograms/matchkit/telemetry"
)

// --- Batched ---

// Batched splits large inputs into fixed-size batches and embeds up to
// concurrency batches at once. Output order always matches input order.
type Batched struct {
	inner       Provider
	size        int
	concurrency int
	logger      *logging.Logger
}

// NewBatched wraps p. size <= 0 sends everything in one call; concurrency
// <= 0 means one batch at a time.
func NewBatched(p Provider, size, concurrency int, logger *logging.Logger) *Batched {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Batched{inner: p, size: size, concurrency: concurrency, logger: logging.OrDiscard(logger)}
}

// Name implements Provider.
func (b *Batched) Name() string { return b.inner.Name() }

// Dimension implements Provider.
func (b *Batched) Dimension() int { return b.inner.Dimension() }

// Embed implements Provider.
func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	size := b.size
	if size <= 0 || size > len(texts) {
		size = len(texts)
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for start, batch := 0, 0; start < len(texts); start, batch = start+size, batch+1 {
		start, batch := start, batch
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			tracer := telemetry.GetTracer()
			spanCtx, span := tracer.StartEmbeddingSpan(gctx, b.inner.Name())
			begin := time.Now()

			vecs, err := b.inner.Embed(spanCtx, texts[start:end])
			if err == nil && len(vecs) != end-start {
				err = errors.Newf(errors.ErrCodeEmbeddingFailed,
					"%s returned %d vectors for %d texts", b.inner.Name(), len(vecs), end-start)
			}

			tracer.EndEmbeddingSpan(span, telemetry.EmbeddingSpanOptions{
				Provider:  b.inner.Name(),
				Texts:     end - start,
				Dimension: b.inner.Dimension(),
			}, err)
			b.logger.EmbeddingBatch(b.inner.Name(), batch, end-start, time.Since(begin), err)
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Throttled ---

// Throttled limits the call rate to the wrapped provider with a token bucket.
type Throttled struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewThrottled allows rps calls per second with the given burst (minimum 1).
func NewThrottled(p Provider, rps float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Name implements Provider.
func (t *Throttled) Name() string { return t.inner.Name() }

// Dimension implements Provider.
func (t *Throttled) Dimension() int { return t.inner.Dimension() }

// Embed implements Provider.
func (t *Throttled) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		// Wait fails early when the deadline is closer than the next token.
		return nil, errors.WrapWithCode(err, errors.ErrCodeRateLimit, "embedding rate limit wait", errors.WithOp(t.inner.Name()))
	}
	return t.inner.Embed(ctx, texts)
}

// --- Retrying ---

// RetryConfig holds retry settings for provider calls.
type RetryConfig struct {
	MaxRetries  int           // Max retry attempts
	InitBackoff time.Duration // Initial backoff (default 1s)
	MaxBackoff  time.Duration // Max backoff duration (default 30s)
}

const backoffFactor = 2.0

// Retrying re-issues calls that fail with a retryable error, backing off
// exponentially between attempts.
type Retrying struct {
	inner Provider
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps p.
func NewRetrying(p Provider, cfg RetryConfig) *Retrying {
	if cfg.InitBackoff <= 0 {
		cfg.InitBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Retrying{inner: p, cfg: cfg, sleep: sleepCtx}
}

// Name implements Provider.
func (r *Retrying) Name() string { return r.inner.Name() }

// Dimension implements Provider.
func (r *Retrying) Dimension() int { return r.inner.Dimension() }

// Embed implements Provider.
func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := r.cfg.InitBackoff
	for attempt := 0; ; attempt++ {
		vecs, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		if !errors.IsRetryable(err) || attempt >= r.cfg.MaxRetries {
			return nil, err
		}
		if err := r.sleep(ctx, backoff); err != nil {
			return nil, errors.Wrap(err, "embedding retry interrupted", errors.WithOp(r.inner.Name()))
		}
		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// --- Checked ---

// Checked rejects malformed responses: a wrong vector count, a vector whose
// length differs from Dimension, or a NaN or infinite component.
type Checked struct {
	inner Provider
}

// NewChecked wraps p.
func NewChecked(p Provider) *Checked {
	return &Checked{inner: p}
}

// Name implements Provider.
func (c *Checked) Name() string { return c.inner.Name() }

// Dimension implements Provider.
func (c *Checked) Dimension() int { return c.inner.Dimension() }

// Embed implements Provider.
func (c *Checked) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := c.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
			"%s returned %d vectors for %d texts", c.inner.Name(), len(vecs), len(texts))
	}
	want := c.inner.Dimension()
	for i, v := range vecs {
		if len(v) != want {
			return nil, errors.Newf(errors.ErrCodeDimensionMismatch,
				"%s returned dimension %d for text %d, want %d", c.inner.Name(), len(v), i, want)
		}
		for j, x := range v {
			if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
					"%s returned non-finite value %v at component %d of text %d", c.inner.Name(), x, j, i)
			}
		}
	}
	return vecs, nil
}

// --- Prefixed ---

// Prefixed prepends a fixed role marker ("query: ", "passage: ") to every
// text. An empty prefix makes it a pass-through.
type Prefixed struct {
	inner  Provider
	prefix string
}

// WithPrefix wraps p. It returns p unchanged when prefix is empty.
func WithPrefix(p Provider, prefix string) Provider {
	if prefix == "" {
		return p
	}
	return &Prefixed{inner: p, prefix: prefix}
}

// Name implements Provider.
func (p *Prefixed) Name() string { return p.inner.Name() }

// Dimension implements Provider.
func (p *Prefixed) Dimension() int { return p.inner.Dimension() }

// Embed implements Provider.
func (p *Prefixed) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = p.prefix + t
	}
	return p.inner.Embed(ctx, prefixed)
}
