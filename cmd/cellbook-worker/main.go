// Command cellbook-worker runs one kernel and serves execution requests
// framed on stdin and stdout. It is started by the cellbook server when the
// worker executor is configured; logs go to stderr.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/seantiz/cellbook/internal/backend/kernel"
	"github.com/seantiz/cellbook/internal/backend/worker"
	"github.com/seantiz/cellbook/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel).With("component", "worker", "pid", os.Getpid())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	k := kernel.New(
		kernel.WithTimeout(cfg.ExecTimeout),
		kernel.WithMaxSteps(cfg.MaxSteps),
		kernel.WithLogger(logger),
	)
	defer k.Close()

	logger.Info("worker ready")
	if err := worker.Serve(ctx, os.Stdin, os.Stdout, k, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
