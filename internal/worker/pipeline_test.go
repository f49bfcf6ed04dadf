package worker_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vexi/apps/worker/internal/worker"
)

func seed(idx *memoryIndex, id uuid.UUID, texts ...string) {
	rows := make([]worker.IndexedChunk, len(texts))
	for i, t := range texts {
		rows[i] = worker.IndexedChunk{ChunkIndex: i, Text: t}
	}
	_ = idx.ReplaceChunks(context.Background(), id, rows)
}

func TestPipeline_Process_ThreeChunks(t *testing.T) {
	idx := newMemoryIndex()
	emb := &fakeEmbedder{}
	p := worker.NewPipeline(emb, idx, worker.WithChunkSize(500))

	job := &worker.Job{DocumentID: uuid.New(), Content: strings.Repeat("y", 1200), Model: "m"}
	n, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, emb.calls)

	rows := idx.get(job.DocumentID)
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, i, r.ChunkIndex)
		assert.Equal(t, []float32{float32(len(r.Text)), float32(i), 0.5}, r.Embedding.Slice())
	}
	assert.Equal(t, strings.Repeat("y", 500), rows[0].Text)
	assert.Equal(t, strings.Repeat("y", 500), rows[1].Text)
	assert.Equal(t, strings.Repeat("y", 200), rows[2].Text)
}

func TestPipeline_Process_EmptyContentClearsDocument(t *testing.T) {
	idx := newMemoryIndex()
	emb := &fakeEmbedder{}
	p := worker.NewPipeline(emb, idx)

	id := uuid.New()
	seed(idx, id, "old a", "old b")

	n, err := p.Process(context.Background(), &worker.Job{DocumentID: id, Content: "", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, emb.calls, "no provider call for an empty document")
	assert.Empty(t, idx.get(id))
}

func TestPipeline_Process_Idempotent(t *testing.T) {
	idx := newMemoryIndex()
	p := worker.NewPipeline(&fakeEmbedder{}, idx, worker.WithChunkSize(40))

	job := &worker.Job{
		DocumentID: uuid.New(),
		Content:    "Alpha beta gamma. Delta epsilon zeta.\n\nEta theta iota kappa. Lambda mu.",
		Model:      "m",
	}

	_, err := p.Process(context.Background(), job)
	require.NoError(t, err)
	first := idx.get(job.DocumentID)

	_, err = p.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, first, idx.get(job.DocumentID))
}

func TestPipeline_Process_ReplacesPreviousChunkSet(t *testing.T) {
	idx := newMemoryIndex()
	p := worker.NewPipeline(&fakeEmbedder{}, idx, worker.WithChunkSize(10))

	id := uuid.New()
	_, err := p.Process(context.Background(), &worker.Job{DocumentID: id, Content: strings.Repeat("a", 35), Model: "m"})
	require.NoError(t, err)
	require.Len(t, idx.get(id), 4)

	_, err = p.Process(context.Background(), &worker.Job{DocumentID: id, Content: "short", Model: "m"})
	require.NoError(t, err)
	rows := idx.get(id)
	require.Len(t, rows, 1)
	assert.Equal(t, "short", rows[0].Text)
}

func TestPipeline_Process_ProviderFailureLeavesStoreUntouched(t *testing.T) {
	idx := newMemoryIndex()
	p := worker.NewPipeline(&fakeEmbedder{err: errBoom}, idx)

	id := uuid.New()
	seed(idx, id, "kept")

	_, err := p.Process(context.Background(), &worker.Job{DocumentID: id, Content: "new text", Model: "m"})
	require.Error(t, err)

	var providerErr *worker.ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "m", providerErr.Model)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "provider", worker.ErrorKind(err))

	rows := idx.get(id)
	require.Len(t, rows, 1)
	assert.Equal(t, "kept", rows[0].Text)
}

func TestPipeline_Process_ShortBatch(t *testing.T) {
	idx := newMemoryIndex()
	p := worker.NewPipeline(&fakeEmbedder{short: true}, idx, worker.WithChunkSize(500))

	id := uuid.New()
	seed(idx, id, "kept")

	_, err := p.Process(context.Background(), &worker.Job{DocumentID: id, Content: strings.Repeat("z", 1200), Model: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, worker.ErrBatchSizeMismatch)
	assert.Contains(t, err.Error(), "sent 3 texts, got 2 vectors")
	assert.Len(t, idx.get(id), 1)
}

func TestPipeline_Process_MissingVectorInFullBatch(t *testing.T) {
	idx := newMemoryIndex()
	emb := new(MockEmbedder)
	emb.On("EmbedBatch", mock.Anything, "m", mock.Anything).
		Return([][]float64{{0.3, 0.4}, nil, {0.5, 0.6}}, nil)
	p := worker.NewPipeline(emb, idx, worker.WithChunkSize(500))

	id := uuid.New()
	seed(idx, id, "kept")

	_, err := p.Process(context.Background(), &worker.Job{DocumentID: id, Content: strings.Repeat("z", 1200), Model: "m"})
	require.Error(t, err)

	var providerErr *worker.ProviderError
	assert.True(t, errors.As(err, &providerErr))
	assert.Contains(t, err.Error(), "chunk 1 has no values")
	assert.Len(t, idx.get(id), 1)
}

func TestPipeline_Process_DimensionGuard(t *testing.T) {
	idx := newMemoryIndex()
	p := worker.NewPipeline(&fakeEmbedder{}, idx, worker.WithDimensions(1536))

	_, err := p.Process(context.Background(), &worker.Job{DocumentID: uuid.New(), Content: "text", Model: "m"})
	assert.ErrorIs(t, err, worker.ErrDimensionMismatch)

	var providerErr *worker.ProviderError
	assert.True(t, errors.As(err, &providerErr))
}

func TestPipeline_Process_DimensionGuardDisabled(t *testing.T) {
	idx := newMemoryIndex()
	p := worker.NewPipeline(&fakeEmbedder{}, idx, worker.WithDimensions(0))

	_, err := p.Process(context.Background(), &worker.Job{DocumentID: uuid.New(), Content: "text", Model: "m"})
	assert.NoError(t, err)
}

func TestPipeline_Process_StorageError(t *testing.T) {
	idx := newMemoryIndex()
	idx.failErr = fmt.Errorf("expected 1536 dimensions, not 3")
	p := worker.NewPipeline(&fakeEmbedder{}, idx)

	id := uuid.New()
	_, err := p.Process(context.Background(), &worker.Job{DocumentID: id, Content: "text", Model: "m"})

	var storageErr *worker.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, id, storageErr.DocumentID)
	assert.Equal(t, "storage", worker.ErrorKind(err))
}

func TestPipeline_Process_PassesModelAndTextsInOrder(t *testing.T) {
	e := new(MockEmbedder)
	s := new(MockIndexStore)
	p := worker.NewPipeline(e, s, worker.WithChunkSize(20))

	id := uuid.New()
	job := &worker.Job{
		DocumentID:    id,
		Content:       "# One\nfirst body\n# Two\nsecond body",
		Model:         "openai/text-embedding-3-small",
		ChunkStrategy: "recursive-markdown",
	}

	e.On("EmbedBatch", mock.Anything, "openai/text-embedding-3-small", []string{"# One\nfirst body", "# Two\nsecond body"}).
		Return([][]float64{{0.1}, {0.2}}, nil)
	s.On("ReplaceChunks", mock.Anything, id, mock.MatchedBy(func(rows []worker.IndexedChunk) bool {
		return len(rows) == 2 &&
			rows[0].ChunkIndex == 0 && rows[0].Text == "# One\nfirst body" &&
			rows[1].ChunkIndex == 1 && rows[1].Text == "# Two\nsecond body"
	})).Return(nil)

	n, err := p.Process(context.Background(), job)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	e.AssertExpectations(t)
	s.AssertExpectations(t)
}

func TestPipeline_Process_UnknownStrategyFallsBack(t *testing.T) {
	idx := newMemoryIndex()
	p := worker.NewPipeline(&fakeEmbedder{}, idx)

	id := uuid.New()
	n, err := p.Process(context.Background(), &worker.Job{DocumentID: id, Content: "hello", Model: "m", ChunkStrategy: "semantic"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
