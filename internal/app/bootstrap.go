package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"vexi/apps/worker/internal/adapter/gemini"
	"vexi/apps/worker/internal/adapter/openai"
	"vexi/apps/worker/internal/config"
	"vexi/apps/worker/internal/embedding"
	"vexi/apps/worker/internal/queue"
	"vexi/apps/worker/internal/worker"
)

// JobQueue is a queue backend the loops pop from.
type JobQueue interface {
	worker.Dequeuer
	Close() error
}

type Dependencies struct {
	DB       *sql.DB
	Queue    JobQueue
	Embedder worker.Embedder

	closers []io.Closer
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	retryDelay := cfg.BootstrapRetryDelay()
	if err := WithRetry(ctx, "ping db", cfg.BootstrapRetryAttempts, retryDelay, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := RunMigrations(db, cfg.MigrationPath); err != nil {
		db.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "migrations applied successfully")

	// Queue
	q, err := NewQueue(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	deps := &Dependencies{DB: db, Queue: q}
	deps.Embedder, deps.closers = NewEmbedder(cfg)
	return deps, nil
}

// Close releases the queue connection, provider clients and the pool.
func (d *Dependencies) Close() error {
	var errs []error
	if d.Queue != nil {
		errs = append(errs, d.Queue.Close())
	}
	for _, c := range d.closers {
		errs = append(errs, c.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	return errors.Join(errs...)
}

func RunMigrations(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

func NewQueue(ctx context.Context, cfg *config.Config) (JobQueue, error) {
	retryDelay := cfg.BootstrapRetryDelay()

	switch cfg.QueueBackend {
	case config.QueueBackendNSQ:
		if cfg.NSQDHTTP != "" {
			if err := queue.EnsureTopic(ctx, cfg.NSQDHTTP, cfg.QueueName); err != nil {
				slog.WarnContext(ctx, "failed to create NSQ topic", "topic", cfg.QueueName, "error", err)
			}
		}
		q, err := queue.NewNSQQueue(queue.NSQOptions{
			Topic:       cfg.QueueName,
			Channel:     cfg.NSQChannel,
			Lookupd:     cfg.NSQLookupd,
			NSQD:        cfg.NSQDHost,
			Concurrency: cfg.WorkerCount,
			PopTimeout:  cfg.PopTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return q, nil

	default:
		q, err := queue.NewRedisQueue(cfg.RedisURL, cfg.QueueName, cfg.PopTimeout())
		if err != nil {
			return nil, err
		}
		if err := WithRetry(ctx, "ping redis", cfg.BootstrapRetryAttempts, retryDelay, q.Ping); err != nil {
			q.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		slog.InfoContext(ctx, "listening for jobs", "backend", "redis", "queue", cfg.QueueName)
		return q, nil
	}
}

// NewEmbedder registers every provider adapter with a router that defaults
// to cfg.EmbeddingProvider. Adapters holding connections are returned as
// closers.
func NewEmbedder(cfg *config.Config) (*embedding.Router, []io.Closer) {
	geminiEmbedder := gemini.NewEmbedder(cfg.GeminiAPIKey)

	router := embedding.NewRouter(cfg.EmbeddingProvider).
		Register(config.ProviderOpenAI, openai.NewEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)).
		Register(config.ProviderGemini, geminiEmbedder)

	return router, []io.Closer{geminiEmbedder}
}

// WithRetry runs op up to attempts times, sleeping delay between failures.
func WithRetry(ctx context.Context, name string, attempts int, delay time.Duration, op func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		slog.WarnContext(ctx, name+" failed, retrying...", "attempt", i+1, "max_attempts", attempts, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
