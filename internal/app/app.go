package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"vexi/apps/worker/features/document"
	"vexi/apps/worker/features/stats"
	"vexi/apps/worker/internal/adapter/pgvector"
	"vexi/apps/worker/internal/config"
	"vexi/apps/worker/internal/joblog"
	"vexi/apps/worker/internal/middleware"
	"vexi/apps/worker/internal/worker"
)

type App struct {
	Handler http.Handler
	Loops   []*worker.Loop

	serverPort   int
	enableServer bool
	jobLog       *joblog.Logger
}

func New(cfg *config.Config, db *sql.DB, q worker.Dequeuer, embedder worker.Embedder) (*App, error) {
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("%w: WORKER_COUNT must be positive", config.ErrInvalidValue)
	}

	store := pgvector.NewStore(db)

	jobLogger, err := joblog.NewFileLogger(cfg.JobLogPath)
	if err != nil {
		slog.Warn("failed to create job logger, falling back to stdout", "error", err)
		jobLogger = joblog.NewLogger(os.Stdout)
	}

	pipeline := worker.NewPipeline(embedder, store,
		worker.WithChunkSize(cfg.ChunkSize),
		worker.WithDimensions(cfg.EmbeddingDimensions),
	)

	loops := make([]*worker.Loop, cfg.WorkerCount)
	statuses := make([]stats.LoopStatus, cfg.WorkerCount)
	for i := range loops {
		loops[i] = worker.NewLoop(q, pipeline,
			worker.WithID(i),
			worker.WithRecorder(jobLogger),
			worker.WithErrorDelay(cfg.QueueErrorDelay()),
		)
		statuses[i] = loops[i]
	}

	// Feature: Stats
	statsHandler := stats.NewHandler(store, statuses...)

	// Feature: Document
	documentHandler := document.NewHandler(store)

	// Routes
	mux := http.NewServeMux()
	mux.Handle("GET /stats", middleware.CorrelationID(http.HandlerFunc(statsHandler.GetStats)))
	mux.Handle("GET /documents/{id}/chunks", middleware.CorrelationID(http.HandlerFunc(documentHandler.GetChunks)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:      mux,
		Loops:        loops,
		serverPort:   cfg.ServerPort,
		enableServer: cfg.EnableStatusServer,
		jobLog:       jobLogger,
	}, nil
}

// Close releases the job log file. Call it after Run returns.
func (a *App) Close() error {
	return a.jobLog.Close()
}

// Run starts every loop and, when enabled, the status server. It returns
// once ctx is cancelled and every loop has finished its current job.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, l := range a.Loops {
		g.Go(func() error {
			return l.Run(gctx)
		})
	}

	if a.enableServer {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.serverPort),
			Handler:           a.Handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			<-gctx.Done()
			slog.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("server shutdown failed", "error", err)
			}
			return nil
		})

		g.Go(func() error {
			slog.Info("status server starting", "port", a.serverPort)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
