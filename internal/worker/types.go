package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// IndexedChunk is one row of the search index.
type IndexedChunk struct {
	ChunkIndex int
	Text       string
	Embedding  pgvector.Vector
}

// Embedder turns an ordered batch of texts into one vector per text, in the
// same order. A failed call writes nothing and is not retried.
type Embedder interface {
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float64, error)
}

// IndexStore replaces a document's rows atomically.
type IndexStore interface {
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []IndexedChunk) error
}

// Dequeuer pops one payload, blocking until one arrives or the queue's own
// timeout elapses. A nil payload with a nil error means the queue was empty.
type Dequeuer interface {
	Dequeue(ctx context.Context) ([]byte, error)
}

// Processor runs the pipeline for one decoded job and reports how many
// chunks were indexed.
type Processor interface {
	Process(ctx context.Context, job *Job) (int, error)
}
