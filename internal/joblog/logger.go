package joblog

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	StatusIndexed = "indexed"
	StatusFailed  = "failed"
)

// Entry is one processed job. DocumentID is empty when the payload could not
// be decoded.
type Entry struct {
	Timestamp     time.Time     `json:"timestamp"`
	DocumentID    string        `json:"document_id,omitempty"`
	Model         string        `json:"model,omitempty"`
	Strategy      string        `json:"chunk_strategy,omitempty"`
	Chunks        int           `json:"chunks"`
	Status        string        `json:"status"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	LatencyMs     int64         `json:"latency_ms"`
	CorrelationID string        `json:"correlation_id"`
}

// Logger appends entries as JSON lines. Safe for concurrent loops.
type Logger struct {
	writer io.Writer
	closer io.Closer
	mu     sync.Mutex
}

func NewLogger(w io.Writer) *Logger {
	return &Logger{writer: w}
}

func NewFileLogger(path string) (*Logger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	cleanPath := filepath.Clean(path)
	f, err := os.OpenFile(cleanPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path is from application config, not user input
	if err != nil {
		return nil, err
	}
	return &Logger{writer: f, closer: f}, nil
}

// Close releases the file opened by NewFileLogger. Loggers built on a
// caller's writer leave it open. Entries recorded after Close are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	l.writer = io.Discard
	return err
}

func (l *Logger) Record(entry Entry) {
	entry.Timestamp = time.Now()
	entry.LatencyMs = entry.Duration.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write job log entry", "error", err)
	}
}
