package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"vexi/apps/worker/internal/adapter/gemini"
	"vexi/apps/worker/internal/embedding"
)

func TestEmbedder_EmbedBatch(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req struct {
			Requests []json.RawMessage `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		embeddings := make([]map[string]interface{}, len(req.Requests))
		for i := range req.Requests {
			embeddings[i] = map[string]interface{}{"values": []float32{float32(i) + 0.5, 0.25}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": embeddings})
	}))
	defer ts.Close()

	e := gemini.NewEmbedder("test-key", option.WithEndpoint(ts.URL))
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), "gemini-embedding-001", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float64{0.5, 0.25}, vecs[0])
	assert.Equal(t, []float64{2.5, 0.25}, vecs[2])
	assert.True(t, strings.Contains(gotPath, "gemini-embedding-001:batchEmbedContents"), gotPath)
}

func TestEmbedder_MissingAPIKey(t *testing.T) {
	e := gemini.NewEmbedder("")
	vecs, err := e.EmbedBatch(context.Background(), "gemini-embedding-001", []string{"a"})
	assert.Nil(t, vecs)
	assert.ErrorIs(t, err, embedding.ErrProviderAuth)
	assert.Contains(t, err.Error(), "gemini api key not configured")
}

func TestEmbedder_EmptyValues(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": []map[string]interface{}{{"values": []float32{}}},
		})
	}))
	defer ts.Close()

	e := gemini.NewEmbedder("test-key", option.WithEndpoint(ts.URL))
	defer e.Close()

	_, err := e.EmbedBatch(context.Background(), "gemini-embedding-001", []string{"a"})
	assert.ErrorIs(t, err, embedding.ErrEmptyEmbedding)
}

func TestEmbedder_PermissionDenied(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    403,
				"message": "API key not valid",
				"status":  "PERMISSION_DENIED",
			},
		})
	}))
	defer ts.Close()

	e := gemini.NewEmbedder("bad-key", option.WithEndpoint(ts.URL))
	defer e.Close()

	_, err := e.EmbedBatch(context.Background(), "gemini-embedding-001", []string{"a"})
	assert.ErrorIs(t, err, embedding.ErrProviderAuth)
}
