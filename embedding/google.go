package embedding

import (
	"context"
	stderrors "errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vinayprograms/matchkit/errors"
)

// GoogleEmbedder calls the Gemini embedding API through the official SDK.
type GoogleEmbedder struct {
	client    *genai.Client
	model     *genai.EmbeddingModel
	dimension int
}

// GoogleConfig configures the Google embedder.
type GoogleConfig struct {
	APIKey    string
	Model     string // default: text-embedding-004
	Dimension int    // default: 768
}

// NewGoogleEmbedder creates a Google embedding provider.
func NewGoogleEmbedder(ctx context.Context, cfg GoogleConfig) (*GoogleEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "api_key is required for google embeddings")
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 768
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create google client", errors.WithOp("google"))
	}
	em := client.EmbeddingModel(model)
	em.TaskType = genai.TaskTypeSemanticSimilarity

	return &GoogleEmbedder{client: client, model: em, dimension: dimension}, nil
}

// Name implements Provider.
func (e *GoogleEmbedder) Name() string { return "google" }

// Dimension implements Provider.
func (e *GoogleEmbedder) Dimension() int { return e.dimension }

// Embed implements Provider.
func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := e.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		var apiErr *googleapi.Error
		if stderrors.As(err, &apiErr) {
			return nil, providerError(e.Name(), apiErr.Code, err)
		}
		return nil, providerError(e.Name(), 0, err)
	}

	result := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if i < len(result) && emb != nil {
			result[i] = emb.Values
		}
	}
	return result, nil
}

// Close releases the underlying client.
func (e *GoogleEmbedder) Close() error {
	return e.client.Close()
}
