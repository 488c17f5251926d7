package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/ollama/ollama/api"
)

// OllamaProvider computes embeddings through a local Ollama instance.
type OllamaProvider struct {
	client     *api.Client
	model      string
	dimensions int
}

// NewOllamaProvider creates an Ollama-backed embedding provider.
// The OLLAMA_HOST environment variable overrides the configured host.
func NewOllamaProvider(host, model string, dimensions int) (*OllamaProvider, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	if envURL := os.Getenv("OLLAMA_HOST"); envURL != "" {
		host = envURL
	}
	uri, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	return &OllamaProvider{
		client:     api.NewClient(uri, http.DefaultClient),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed returns the model's embedding vector for text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embed(ctx, &api.EmbedRequest{
		Model: p.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: model %q returned no vector", p.model)
	}
	return resp.Embeddings[0], nil
}

// Dimensions returns the expected vector length.
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}
