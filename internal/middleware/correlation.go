package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type key int

const (
	CorrelationKey key = iota
	DocumentKey
)

const CorrelationHeader = "X-Correlation-ID"

// CorrelationID tags every status request with an id, taken from the
// X-Correlation-ID header when the caller supplies one.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = NewCorrelationID()
		}

		ctx := WithCorrelationID(r.Context(), id)
		w.Header().Set(CorrelationHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))

		slog.DebugContext(ctx, "request completed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start)) // #nosec G706 -- r.URL.Path is parsed by Go's net/http
	})
}

func NewCorrelationID() string {
	return uuid.New().String()
}

func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationKey).(string); ok {
		return id
	}
	return "unknown"
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationKey, id)
}

// WithDocumentID scopes ctx to one job's document so every log line of the
// job carries it.
func WithDocumentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, DocumentKey, id)
}

func GetDocumentID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(DocumentKey).(string)
	return id, ok && id != ""
}
