package worker_test

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"vexi/apps/worker/internal/joblog"
	"vexi/apps/worker/internal/worker"
)

// Mocks

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	args := m.Called(ctx, model, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float64), args.Error(1)
}

type MockIndexStore struct{ mock.Mock }

func (m *MockIndexStore) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []worker.IndexedChunk) error {
	args := m.Called(ctx, documentID, chunks)
	return args.Error(0)
}

type MockProcessor struct{ mock.Mock }

func (m *MockProcessor) Process(ctx context.Context, job *worker.Job) (int, error) {
	args := m.Called(ctx, job)
	return args.Int(0), args.Error(1)
}

// fakeEmbedder returns a deterministic vector per text: {len(text), index, 0.5}.
type fakeEmbedder struct {
	calls int
	err   error
	short bool
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short && n > 0 {
		n--
	}
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = []float64{float64(len(texts[i])), float64(i), 0.5}
	}
	return out, nil
}

// memoryIndex mimics the transactional store: a replace either fully
// applies or leaves the previous rows.
type memoryIndex struct {
	mu      sync.Mutex
	rows    map[uuid.UUID][]worker.IndexedChunk
	failErr error
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{rows: map[uuid.UUID][]worker.IndexedChunk{}}
}

func (m *memoryIndex) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []worker.IndexedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	cp := make([]worker.IndexedChunk, len(chunks))
	copy(cp, chunks)
	m.rows[documentID] = cp
	return nil
}

func (m *memoryIndex) get(id uuid.UUID) []worker.IndexedChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

// sliceQueue pops pre-loaded payloads, then reports an empty queue.
type sliceQueue struct {
	mu     sync.Mutex
	items  [][]byte
	errs   []error
	popped int
}

func (q *sliceQueue) Dequeue(ctx context.Context) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.errs) > 0 {
		err := q.errs[0]
		q.errs = q.errs[1:]
		return nil, err
	}
	if len(q.items) == 0 {
		return nil, nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.popped++
	return item, nil
}

type recorder struct {
	mu      sync.Mutex
	entries []joblog.Entry
}

func (r *recorder) Record(e joblog.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recorder) all() []joblog.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]joblog.Entry(nil), r.entries...)
}

var errBoom = errors.New("boom")
