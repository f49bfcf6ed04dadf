package embedding

import (
	"context"
	"fmt"
	"strings"
)

// BatchEmbedder is the capability every provider adapter implements.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float64, error)
}

// Router dispatches on a "provider/" prefix of the model identifier, e.g.
// "openai/text-embedding-3-small". Identifiers without a known prefix go to
// the default provider unchanged.
type Router struct {
	providers map[string]BatchEmbedder
	fallback  string
}

func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers: map[string]BatchEmbedder{},
		fallback:  defaultProvider,
	}
}

// Register adds a provider under name. Registering a name twice replaces it.
func (r *Router) Register(name string, e BatchEmbedder) *Router {
	r.providers[name] = e
	return r
}

func (r *Router) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	e, name, err := r.resolve(model)
	if err != nil {
		return nil, err
	}
	return e.EmbedBatch(ctx, name, texts)
}

func (r *Router) resolve(model string) (BatchEmbedder, string, error) {
	if model == "" {
		return nil, "", fmt.Errorf("%w: empty model identifier", ErrUnsupportedModel)
	}

	if prefix, name, ok := strings.Cut(model, "/"); ok {
		if e, found := r.providers[prefix]; found {
			if name == "" {
				return nil, "", fmt.Errorf("%w: %q has no model name", ErrUnsupportedModel, model)
			}
			return e, name, nil
		}
		if knownProviders[prefix] {
			return nil, "", fmt.Errorf("%w: provider %q is not configured", ErrUnsupportedModel, prefix)
		}
	}

	e, ok := r.providers[r.fallback]
	if !ok {
		return nil, "", fmt.Errorf("%w: no provider for %q", ErrUnsupportedModel, model)
	}
	return e, model, nil
}

// knownProviders are prefixes rejected when not registered, rather than
// passed through as part of a model name like "models/text-embedding-004".
var knownProviders = map[string]bool{
	"openai":  true,
	"gemini":  true,
	"cohere":  true,
	"voyage":  true,
	"mistral": true,
}
