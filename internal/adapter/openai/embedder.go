package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"vexi/apps/worker/internal/embedding"
)

// Embedder calls the OpenAI embeddings endpoint once per batch.
type Embedder struct {
	client *openai.Client
}

// NewEmbedder builds a client; baseURL overrides the API root for
// OpenAI-compatible servers and tests.
func NewEmbedder(apiKey, baseURL string) *Embedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Embedder{client: openai.NewClientWithConfig(cfg)}
}

func (e *Embedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	slog.DebugContext(ctx, "embedding batch", "provider", "openai", "model", model, "texts", len(texts))

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, classify(err)
	}

	// Each position must be filled exactly once. A short response is returned
	// as is; the caller compares lengths.
	out := make([][]float64, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: index %d outside a response of %d", embedding.ErrMalformedBatch, d.Index, len(out))
		}
		if out[d.Index] != nil {
			return nil, fmt.Errorf("%w: index %d repeated", embedding.ErrMalformedBatch, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: index %d", embedding.ErrEmptyEmbedding, d.Index)
		}
		out[d.Index] = widen(d.Embedding)
	}
	return out, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if kind := embedding.ClassifyStatus(apiErr.HTTPStatusCode); kind != nil {
			return fmt.Errorf("%w: %w", kind, err)
		}
		return err
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if kind := embedding.ClassifyStatus(reqErr.HTTPStatusCode); kind != nil {
			return fmt.Errorf("%w: %w", kind, err)
		}
	}
	return err
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
