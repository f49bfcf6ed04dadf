package worker

import (
	"context"
	"fmt"
	"log/slog"

	"vexi/apps/worker/internal/text"
	"vexi/apps/worker/internal/vector"
)

type Pipeline struct {
	embedder   Embedder
	store      IndexStore
	chunkSize  int
	dimensions int
}

type PipelineOption func(*Pipeline)

// WithChunkSize sets the chunk budget in characters.
func WithChunkSize(n int) PipelineOption {
	return func(p *Pipeline) { p.chunkSize = n }
}

// WithDimensions rejects vectors whose width is not n before anything is
// written. Zero leaves the check to the vector column.
func WithDimensions(n int) PipelineOption {
	return func(p *Pipeline) { p.dimensions = n }
}

func NewPipeline(e Embedder, s IndexStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		embedder:  e,
		store:     s,
		chunkSize: text.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process chunks, embeds and stores one job. Either every chunk of the job is
// indexed or the document's previous rows are left untouched.
func (p *Pipeline) Process(ctx context.Context, job *Job) (int, error) {
	strategy, known := text.ParseStrategy(job.ChunkStrategy)
	if !known {
		slog.WarnContext(ctx, "unknown chunk strategy, using default", "chunk_strategy", job.ChunkStrategy, "default", strategy)
	}

	chunks := text.Split(job.Content, p.chunkSize, strategy)
	slog.InfoContext(ctx, "split document", "chunks", len(chunks), "chunk_strategy", strategy)

	rows, err := p.embed(ctx, job.Model, chunks)
	if err != nil {
		return 0, err
	}

	if err := p.store.ReplaceChunks(ctx, job.DocumentID, rows); err != nil {
		return 0, &StorageError{DocumentID: job.DocumentID, Err: err}
	}

	return len(rows), nil
}

func (p *Pipeline) embed(ctx context.Context, model string, chunks []text.Chunk) ([]IndexedChunk, error) {
	// Nothing to embed: the store still clears the document.
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, model, texts)
	if err != nil {
		return nil, &ProviderError{Model: model, Err: err}
	}
	if len(vectors) != len(chunks) {
		return nil, &ProviderError{
			Model: model,
			Err:   fmt.Errorf("%w: sent %d texts, got %d vectors", ErrBatchSizeMismatch, len(chunks), len(vectors)),
		}
	}

	for i, v := range vectors {
		if len(v) == 0 {
			return nil, &ProviderError{
				Model: model,
				Err:   fmt.Errorf("%w: chunk %d has no values", ErrDimensionMismatch, i),
			}
		}
	}

	encoded := vector.EncodeBatch(vectors)
	rows := make([]IndexedChunk, len(chunks))
	for i, c := range chunks {
		if p.dimensions > 0 && len(vectors[i]) != p.dimensions {
			return nil, &ProviderError{
				Model: model,
				Err:   fmt.Errorf("%w: chunk %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(vectors[i]), p.dimensions),
			}
		}
		rows[i] = IndexedChunk{
			ChunkIndex: c.Index,
			Text:       c.Text,
			Embedding:  encoded[i],
		}
	}
	return rows, nil
}
