package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebogdum/easylock/locker"
	"github.com/ebogdum/easylock/server"
	"github.com/ebogdum/easylock/worker"
)

// runWorker runs the trailing command under the lock every interval until
// interrupted or the lock store becomes unusable
func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	defer closeStore(store, logger)

	if workerInterval > 0 {
		cfg.Worker.Interval = workerInterval
	}

	logger.Info("Starting easylock worker",
		zap.String("store", cfg.Store.Type),
		zap.String("metrics_addr", cfg.Metrics.ListenAddr))

	if pruner, ok := store.(worker.Pruner); ok && cfg.Store.PruneInterval > 0 {
		worker.StartCleanupWorker(ctx, pruner, cfg.Store.PruneInterval, logger)
	}

	srv := &http.Server{
		Addr:         cfg.Metrics.ListenAddr,
		Handler:      server.NewRouter(store, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info("Starting metrics server", zap.String("addr", cfg.Metrics.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server forced to shutdown", zap.Error(err))
		}
	}()

	runner := worker.NewRunner(newService(cfg, store, logger), worker.Config{
		Interval:   cfg.Worker.Interval,
		RetryDelay: cfg.Worker.RetryDelay,
		MaxRetries: cfg.Worker.MaxRetries,
	}, logger)

	job := worker.Job{
		Name: resource,
		Data: locker.Data{Resource: resource, TTL: lockTTL, ShouldRetry: true},
		Func: func(ctx context.Context) (any, error) {
			result, err := execCommand(ctx, args)
			if err != nil {
				return nil, err
			}
			if code := result.(int); code != 0 {
				return code, fmt.Errorf("%s exited with status %d", args[0], code)
			}
			return 0, nil
		},
	}

	if err := runner.Run(ctx, job); err != nil {
		return &exitError{code: exitSoftware, err: err}
	}

	logger.Info("Worker exited gracefully")
	return nil
}
