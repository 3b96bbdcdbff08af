// Command cellbook serves the notebook over HTTP.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/seantiz/cellbook/internal/api"
	"github.com/seantiz/cellbook/internal/backend"
	"github.com/seantiz/cellbook/internal/backend/kernel"
	"github.com/seantiz/cellbook/internal/backend/worker"
	"github.com/seantiz/cellbook/internal/config"
	"github.com/seantiz/cellbook/internal/history"
	"github.com/seantiz/cellbook/internal/notebook"
	"github.com/seantiz/cellbook/internal/planner"
	"github.com/seantiz/cellbook/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("cellbook: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"executor", cfg.Executor,
		"planner", cfg.Planner.Provider,
	)

	ctx := context.Background()

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := backend.NewRegistry(executorFactory(cfg, logger))
	defer reg.Close()

	hist, err := newHistory(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open message history: %v", err)
	}
	defer hist.Close()

	p, err := planner.New(ctx, planner.Config{
		Provider:   cfg.Planner.Provider,
		Model:      cfg.Planner.Model,
		APIKey:     cfg.Planner.APIKey,
		BaseURL:    cfg.Planner.BaseURL,
		StaticCode: cfg.Planner.StaticCode,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create planner: %v", err)
	}

	nb, err := notebook.New(ctx, db, reg, hist, p, logger,
		notebook.WithPlannerTimeout(cfg.Planner.Timeout),
	)
	if err != nil {
		log.Fatalf("failed to create notebook: %v", err)
	}

	srv := api.NewServer(cfg.ListenAddr, nb, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// executorFactory builds the executor that fills the registry slot.
func executorFactory(cfg config.Config, logger *slog.Logger) backend.Factory {
	if cfg.Executor == config.ExecutorWorker {
		return func() backend.Executor {
			return worker.NewClient(cfg.WorkerPath, nil, worker.WithClientLogger(logger))
		}
	}
	return func() backend.Executor {
		return kernel.New(
			kernel.WithTimeout(cfg.ExecTimeout),
			kernel.WithMaxSteps(cfg.MaxSteps),
			kernel.WithLogger(logger),
		)
	}
}

func newHistory(ctx context.Context, cfg config.Config) (history.Store, error) {
	if cfg.RedisURL == "" {
		return history.NewMemory(cfg.HistoryMax), nil
	}
	return history.NewRedis(ctx, cfg.RedisURL, cfg.HistoryMax, cfg.HistoryTTL)
}
