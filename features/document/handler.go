package document

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"vexi/apps/worker/internal/middleware"
	"vexi/apps/worker/internal/worker"
)

type ChunkLister interface {
	ListChunks(ctx context.Context, documentID uuid.UUID) ([]worker.IndexedChunk, error)
}

type Handler struct {
	store ChunkLister
}

func NewHandler(store ChunkLister) *Handler {
	return &Handler{store: store}
}

// ChunkView is an indexed chunk without its vector.
type ChunkView struct {
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"chunk_text"`
	Dimensions int    `json:"dimensions"`
}

func (h *Handler) GetChunks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "document id must be a UUID", http.StatusBadRequest)
		return
	}
	ctx = middleware.WithDocumentID(ctx, id.String())

	chunks, err := h.store.ListChunks(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to list chunks", http.StatusInternalServerError)
		return
	}

	views := make([]ChunkView, 0, len(chunks))
	for _, c := range chunks {
		views = append(views, ChunkView{
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			Dimensions: len(c.Embedding.Slice()),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": views,
		"meta": map[string]int{"count": len(views)},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
