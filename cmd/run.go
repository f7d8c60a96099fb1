package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebogdum/easylock/locker"
	"github.com/ebogdum/easylock/locks"
)

// runLocked runs the trailing command once under the lock
func runLocked(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer syncLogger(logger)
	defer closeStore(store, logger)

	svc := newService(cfg, store, logger)
	data := locker.Data{Resource: resource, TTL: lockTTL, ShouldRetry: retryOnHeld}

	result, err := svc.ProcessWithLock(ctx, data, func(ctx context.Context) (any, error) {
		return execCommand(ctx, args)
	})

	if err == nil && result == nil {
		logger.Info("Lock held elsewhere, command skipped", zap.String("command", args[0]))
		return nil
	}

	code := exitStatus(result, err)
	if code == 0 {
		return nil
	}
	return &exitError{code: code, err: err}
}

// execCommand runs args with the process's stdio and returns its exit code.
// A non-zero exit is a result, not an error; failing to start is an error.
func execCommand(ctx context.Context, args []string) (any, error) {
	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	err := c.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return commandExitCode(exitErr), nil
	default:
		return nil, fmt.Errorf("failed to run %s: %w", args[0], err)
	}
}

// commandExitCode follows the shell convention of 128+signal for a child
// killed by a signal, which ExitCode reports as -1.
func commandExitCode(exitErr *exec.ExitError) int {
	if code := exitErr.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

func closeStore(store locks.Store, logger *zap.Logger) {
	if err := store.Close(); err != nil {
		logger.Warn("Failed to close lock store", zap.Error(err))
	}
}
