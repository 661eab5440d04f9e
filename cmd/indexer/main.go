package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"storyindex/internal/classify"
	"storyindex/internal/config"
	"storyindex/internal/embed"
	"storyindex/internal/indexer"
	"storyindex/internal/reddit"
	"storyindex/internal/scheduler"
	"storyindex/internal/storage"
)

const databaseFile = "articles.sqlite"

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: indexer <config.yml>")
		os.Exit(2)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	job := func(ctx context.Context) error {
		return runOnce(ctx, cfg, log)
	}

	if cfg.Schedule != "" {
		sched, err := scheduler.New(cfg.Schedule, job, log.With("component", "scheduler"))
		if err != nil {
			log.Error("create scheduler", "error", err)
			os.Exit(1)
		}
		log.Info("indexing scheduler enabled", "name", cfg.Name, "schedule", cfg.Schedule)
		err = sched.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("scheduler stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := job(ctx); err != nil {
		log.Error("index run failed", "error", err)
		os.Exit(1)
	}
}

// runOnce executes a single index run with a store scoped to the run.
func runOnce(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store, err := storage.NewSQLite(filepath.Join(cfg.Path, databaseFile))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	client := reddit.New(http.DefaultClient)
	classifier := classify.New(cfg.Classifier.URL, cfg.Classifier.Model)
	encoder := embed.NewClient(cfg.Embeddings.URL, cfg.Embeddings.Model)
	builder := embed.NewBuilder(encoder, cfg.Path, log.With("component", "embed"))

	idx := indexer.New(cfg, client, classifier, store, builder, log.With("component", "indexer"))
	return idx.Run(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
