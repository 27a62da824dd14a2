package embedding

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vinayprograms/matchkit/errors"
)

// OpenAIEmbedder calls the embeddings endpoint of OpenAI or any
// OpenAI-compatible server (vLLM, LiteLLM, text-embeddings-inference).
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	// sendDimension asks the server to shorten vectors; only the
	// text-embedding-3 family accepts it.
	sendDimension bool
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	APIKey    string
	Model     string // default: text-embedding-3-small
	BaseURL   string // optional, for compatible servers
	Dimension int    // default: model native size
}

// NewOpenAIEmbedder creates an OpenAI embedding provider.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "api_key is required for openai embeddings")
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	native := openAINativeDimension(model)
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = native
	}
	return &OpenAIEmbedder{
		client:        &client,
		model:         model,
		dimension:     dimension,
		sendDimension: dimension != native && strings.HasPrefix(model, "text-embedding-3-"),
	}, nil
}

func openAINativeDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return DefaultDimension
	}
}

// Name implements Provider.
func (e *OpenAIEmbedder) Name() string { return "openai" }

// Dimension implements Provider.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Embed implements Provider.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.sendDimension {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if stderrors.As(err, &apiErr) {
			return nil, providerError(e.Name(), apiErr.StatusCode, err)
		}
		return nil, providerError(e.Name(), 0, err)
	}

	// Sort by index to maintain order
	result := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(result) {
			return nil, providerError(e.Name(), 0, fmt.Errorf("response index %d out of range", d.Index))
		}
		result[d.Index] = toFloat32(d.Embedding)
	}
	return result, nil
}
