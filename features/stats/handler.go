package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"vexi/apps/worker/internal/middleware"
	"vexi/apps/worker/internal/worker"
)

type IndexCounter interface {
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
}

// LoopStatus is the read side of a running job loop.
type LoopStatus interface {
	State() worker.State
	Stats() (processed, failed int64)
}

type Handler struct {
	index IndexCounter
	loops []LoopStatus
}

func NewHandler(index IndexCounter, loops ...LoopStatus) *Handler {
	return &Handler{index: index, loops: loops}
}

type StatsResponse struct {
	Documents     int   `json:"documents"`
	Chunks        int   `json:"chunks"`
	Workers       int   `json:"workers"`
	BusyWorkers   int   `json:"busy_workers"`
	ProcessedJobs int64 `json:"processed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slog.InfoContext(ctx, "getting stats")

	dCount, err := h.index.CountDocuments(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	cCount, err := h.index.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents: dCount,
		Chunks:    cCount,
		Workers:   len(h.loops),
	}
	for _, l := range h.loops {
		if l.State() == worker.StateProcessing {
			resp.BusyWorkers++
		}
		processed, failed := l.Stats()
		resp.ProcessedJobs += processed
		resp.FailedJobs += failed
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
