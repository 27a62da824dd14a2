package embedding

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/vinayprograms/matchkit/credentials"
	"github.com/vinayprograms/matchkit/errors"
	"github.com/vinayprograms/matchkit/logging"
)

// Provider generates vector embeddings for text.
type Provider interface {
	// Name identifies the provider in logs and spans.
	Name() string

	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of every vector Embed returns.
	Dimension() int
}

// DefaultDimension matches multilingual-e5-large.
const DefaultDimension = 1024

// Config selects and tunes a provider.
type Config struct {
	// Provider is one of openai, google, ollama, hash.
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`
	Dimension int    `toml:"dimension"`

	// QueryPrefix and PassagePrefix are prepended to résumé and posting text
	// respectively, for models trained with role prefixes ("query: ").
	QueryPrefix   string `toml:"query_prefix"`
	PassagePrefix string `toml:"passage_prefix"`

	BatchSize         int           `toml:"batch_size"`
	Concurrency       int           `toml:"concurrency"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Burst             int           `toml:"burst"`
	MaxRetries        int           `toml:"max_retries"`
	InitBackoff       time.Duration `toml:"init_backoff"`
	MaxBackoff        time.Duration `toml:"max_backoff"`
	Timeout           time.Duration `toml:"timeout"`
}

// DefaultConfig returns the offline hash provider at the production dimension.
func DefaultConfig() Config {
	return Config{
		Provider:    "hash",
		Dimension:   DefaultDimension,
		BatchSize:   64,
		Concurrency: 4,
		MaxRetries:  3,
		InitBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		Timeout:     60 * time.Second,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "google", "ollama", "hash":
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid, "unknown embedding provider %q", c.Provider)
	}
	if c.Dimension < 0 || c.BatchSize < 0 || c.Concurrency < 0 || c.MaxRetries < 0 || c.Burst < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "embedding limits must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "embedding requests_per_second must not be negative")
	}
	return nil
}

// New builds the configured provider and wraps it for production use:
// retries, throttling, batching and dimension checks.
func New(ctx context.Context, cfg Config, creds *credentials.Credentials, logger *logging.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrDiscard(logger).WithComponent("embedding")

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = creds.GetBaseURL(cfg.Provider)
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case "openai":
		base, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    creds.GetAPIKey("openai"),
			Model:     cfg.Model,
			BaseURL:   baseURL,
			Dimension: cfg.Dimension,
		})
	case "google":
		base, err = NewGoogleEmbedder(ctx, GoogleConfig{
			APIKey:    creds.GetAPIKey("google"),
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})
	case "ollama":
		base = NewOllamaEmbedder(OllamaConfig{
			BaseURL:   baseURL,
			APIKey:    creds.GetAPIKey("ollama"),
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		})
	case "hash":
		base = NewHashEmbedder(cfg.Dimension)
	}
	if err != nil {
		return nil, err
	}

	p := base
	if cfg.MaxRetries > 0 {
		p = NewRetrying(p, RetryConfig{
			MaxRetries:  cfg.MaxRetries,
			InitBackoff: cfg.InitBackoff,
			MaxBackoff:  cfg.MaxBackoff,
		})
	}
	if cfg.RequestsPerSecond > 0 {
		p = NewThrottled(p, cfg.RequestsPerSecond, cfg.Burst)
	}
	p = NewBatched(p, cfg.BatchSize, cfg.Concurrency, logger)
	return NewChecked(p), nil
}

// providerError classifies a failed provider call. status is the HTTP status
// when one was received, or 0.
func providerError(provider string, status int, err error) *errors.Error {
	opts := []errors.Option{errors.WithOp(provider), errors.WithMetadata("provider", provider)}
	switch {
	case status == http.StatusTooManyRequests:
		return errors.WrapWithCode(err, errors.ErrCodeRateLimit, provider+" rate limited", opts...)
	case status >= 400 && status < 500:
		opts = append(opts, errors.WithCategory(errors.CategoryPermanent), errors.WithRetryable(false))
		return errors.WrapWithCode(err, errors.ErrCodeEmbeddingFailed, provider+" rejected request", opts...)
	default:
		return errors.WrapWithCode(err, errors.ErrCodeEmbeddingFailed, provider+" embedding failed", opts...)
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func trimBaseURL(u, fallback string) string {
	if u == "" {
		return fallback
	}
	return strings.TrimRight(u, "/")
}
