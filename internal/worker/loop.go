package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"vexi/apps/worker/internal/joblog"
	"vexi/apps/worker/internal/middleware"
)

type State int32

const (
	StateWaiting State = iota
	StateProcessing
)

func (s State) String() string {
	if s == StateProcessing {
		return "processing"
	}
	return "waiting"
}

// OutcomeRecorder receives one entry per dequeued job.
type OutcomeRecorder interface {
	Record(entry joblog.Entry)
}

// Loop pops jobs one at a time and runs each through the pipeline. A job
// that fails is logged and dropped; the loop carries on with the next one.
type Loop struct {
	id         int
	queue      Dequeuer
	processor  Processor
	recorder   OutcomeRecorder
	errorDelay time.Duration
	state      atomic.Int32
	processed  atomic.Int64
	failed     atomic.Int64
}

type LoopOption func(*Loop)

// WithRecorder appends every outcome to r.
func WithRecorder(r OutcomeRecorder) LoopOption {
	return func(l *Loop) { l.recorder = r }
}

// WithErrorDelay pauses the loop after a queue error.
func WithErrorDelay(d time.Duration) LoopOption {
	return func(l *Loop) { l.errorDelay = d }
}

// WithID labels the loop's log lines when several run in one process.
func WithID(id int) LoopOption {
	return func(l *Loop) { l.id = id }
}

func NewLoop(q Dequeuer, p Processor, opts ...LoopOption) *Loop {
	l := &Loop{
		queue:      q,
		processor:  p,
		errorDelay: time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) State() State { return State(l.state.Load()) }

// Stats reports how many jobs this loop has finished and how many of them failed.
func (l *Loop) Stats() (processed, failed int64) {
	return l.processed.Load(), l.failed.Load()
}

// Run blocks until ctx is cancelled. Cancellation is only observed while
// waiting; a job already dequeued runs to completion.
func (l *Loop) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "job loop started", "worker", l.id)
	for {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "job loop stopped", "worker", l.id)
			return nil
		}

		if err := l.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.ErrorContext(ctx, "dequeue failed", "worker", l.id, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(l.errorDelay):
			}
		}
	}
}

// RunOnce performs one Waiting -> Processing -> Waiting cycle. It returns an
// error only when the dequeue itself failed; job failures are swallowed.
func (l *Loop) RunOnce(ctx context.Context) error {
	body, err := l.queue.Dequeue(ctx)
	if err != nil {
		return err
	}
	if body == nil {
		return nil
	}

	l.state.Store(int32(StateProcessing))
	defer l.state.Store(int32(StateWaiting))

	l.handle(context.WithoutCancel(ctx), body)
	return nil
}

func (l *Loop) handle(ctx context.Context, body []byte) {
	start := time.Now()
	correlationID := middleware.NewCorrelationID()
	ctx = middleware.WithCorrelationID(ctx, correlationID)

	entry := joblog.Entry{CorrelationID: correlationID}
	defer func() {
		if r := recover(); r != nil {
			entry.Status = joblog.StatusFailed
			entry.ErrorKind = "panic"
			entry.Error = fmt.Sprint(r)
			slog.ErrorContext(ctx, "job panicked", "worker", l.id, "panic", r)
		}
		entry.Duration = time.Since(start)
		l.processed.Add(1)
		if entry.Status == joblog.StatusFailed {
			l.failed.Add(1)
		}
		if l.recorder != nil {
			l.recorder.Record(entry)
		}
	}()

	slog.InfoContext(ctx, "received job", "worker", l.id, "bytes", len(body))

	job, err := DecodeJob(body)
	if err != nil {
		entry.Status = joblog.StatusFailed
		entry.ErrorKind = ErrorKind(err)
		entry.Error = err.Error()
		slog.ErrorContext(ctx, "dropping undecodable job", "worker", l.id, "error", err)
		return
	}

	ctx = middleware.WithDocumentID(ctx, job.DocumentID.String())
	entry.DocumentID = job.DocumentID.String()
	entry.Model = job.Model
	entry.Strategy = job.ChunkStrategy

	chunks, err := l.processor.Process(ctx, job)
	if err != nil {
		entry.Status = joblog.StatusFailed
		entry.ErrorKind = ErrorKind(err)
		entry.Error = err.Error()
		slog.ErrorContext(ctx, "failed to process job", "worker", l.id, "kind", entry.ErrorKind, "error", err)
		return
	}

	entry.Status = joblog.StatusIndexed
	entry.Chunks = chunks
	slog.InfoContext(ctx, "finished job", "worker", l.id, "chunks", chunks, "duration", time.Since(start))
}
