package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaEmbedder calls Ollama's /api/embed endpoint, local or hosted.
type OllamaEmbedder struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	BaseURL   string // default: http://localhost:11434
	APIKey    string // only for hosted Ollama
	Model     string // default: mxbai-embed-large
	Dimension int    // default: model native size
	Timeout   time.Duration
}

// NewOllamaEmbedder creates an Ollama embedding provider.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	model := cfg.Model
	if model == "" {
		model = "mxbai-embed-large"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		switch model {
		case "nomic-embed-text":
			dimension = 768
		case "all-minilm":
			dimension = 384
		default:
			dimension = DefaultDimension
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		baseURL:   trimBaseURL(cfg.BaseURL, "http://localhost:11434"),
		apiKey:    cfg.APIKey,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Name implements Provider.
func (e *OllamaEmbedder) Name() string { return "ollama" }

// Dimension implements Provider.
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

// Embed implements Provider. The whole slice goes in one request.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	jsonBody, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, providerError(e.Name(), 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, providerError(e.Name(), 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, providerError(e.Name(), 0, fmt.Errorf("embedding request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError(e.Name(), 0, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providerError(e.Name(), resp.StatusCode,
			fmt.Errorf("ollama embedding error (status %d): %s", resp.StatusCode, string(body)))
	}

	var embedResp ollamaEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, providerError(e.Name(), 0, fmt.Errorf("failed to parse response: %w", err))
	}
	return embedResp.Embeddings, nil
}
