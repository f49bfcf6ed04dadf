package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"vexi/apps/worker/internal/embedding"
)

// Embedder sends one batchEmbedContents request per batch. The client is
// created on first use and shared by every loop.
type Embedder struct {
	apiKey     string
	clientOpts []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
}

func NewEmbedder(apiKey string, opts ...option.ClientOption) *Embedder {
	return &Embedder{apiKey: apiKey, clientOpts: opts}
}

func (e *Embedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	client, err := e.getClient(ctx)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "embedding batch", "provider", "gemini", "model", model, "texts", len(texts))
	em := client.EmbeddingModel(model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classify(err)
	}

	out := make([][]float64, 0, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: index %d", embedding.ErrEmptyEmbedding, i)
		}
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		out = append(out, vec)
	}
	return out, nil
}

func (e *Embedder) getClient(ctx context.Context) (*genai.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		return e.client, nil
	}
	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not configured", embedding.ErrProviderAuth)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(e.apiKey)}, e.clientOpts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}

func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

var grpcKinds = map[codes.Code]error{
	codes.Unauthenticated:   embedding.ErrProviderAuth,
	codes.PermissionDenied:  embedding.ErrProviderAuth,
	codes.ResourceExhausted: embedding.ErrRateLimited,
	codes.InvalidArgument:   embedding.ErrUnsupportedModel,
	codes.NotFound:          embedding.ErrUnsupportedModel,
}

// classify tags REST and gRPC failures with the shared provider sentinels.
func classify(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if kind := embedding.ClassifyStatus(gErr.Code); kind != nil {
			return fmt.Errorf("%w: %w", kind, err)
		}
		return err
	}

	if apiErr, ok := apierror.FromError(err); ok {
		if code := apiErr.HTTPCode(); code > 0 {
			if kind := embedding.ClassifyStatus(code); kind != nil {
				return fmt.Errorf("%w: %w", kind, err)
			}
		} else if st := apiErr.GRPCStatus(); st != nil {
			if kind, found := grpcKinds[st.Code()]; found {
				return fmt.Errorf("%w: %w", kind, err)
			}
		}
	}
	return err
}
