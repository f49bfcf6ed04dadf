package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vexi/apps/worker/internal/app"
	"vexi/apps/worker/internal/config"
	"vexi/apps/worker/internal/logger"
)

func main() {
	// Initialize structured logger
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("indexing worker stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			slog.Warn("failed to release dependencies", "error", err)
		}
	}()

	application, err := app.New(cfg, deps.DB, deps.Queue, deps.Embedder)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			slog.Warn("failed to close job log", "error", err)
		}
	}()

	slog.InfoContext(ctx, "indexing worker started", "workers", cfg.WorkerCount, "queue", cfg.QueueName, "backend", cfg.QueueBackend)
	return application.Run(ctx)
}
