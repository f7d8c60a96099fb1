// Package worker supervises jobs that run under a lock. Contended jobs are
// requeued, and a lost lock store stops the worker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ebogdum/easylock/locker"
	"github.com/ebogdum/easylock/metrics"
)

// ErrRetriesExhausted is returned once a contended job used up its retries
var ErrRetriesExhausted = errors.New("worker: retries exhausted")

// Config controls scheduling and requeueing
type Config struct {
	// Interval between scheduled runs in Run
	Interval time.Duration
	// RetryDelay paces requeued attempts after contention
	RetryDelay time.Duration
	// MaxRetries bounds requeues per run; zero means no requeue
	MaxRetries int
}

// Job is a named unit of work guarded by a lock
type Job struct {
	Name string
	Data locker.Data
	Func locker.Func
}

// Runner executes jobs through a Locker
type Runner struct {
	locker locker.Locker
	cfg    Config
	logger *zap.Logger
}

// NewRunner creates a runner. Jobs passed to it should set Data.ShouldRetry
// for contention to be requeued rather than skipped.
func NewRunner(l locker.Locker, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	return &Runner{
		locker: l,
		cfg:    cfg,
		logger: logger,
	}
}

// retryLimiter paces the requeues of one RunOnce call. The bucket starts
// empty so the first requeue waits a full RetryDelay as well.
func (r *Runner) retryLimiter() *rate.Limiter {
	limit := rate.Inf
	if r.cfg.RetryDelay > 0 {
		limit = rate.Every(r.cfg.RetryDelay)
	}
	limiter := rate.NewLimiter(limit, 1)
	limiter.Allow()
	return limiter
}

// RunOnce runs job, requeueing it while the lock is contended. The bool
// reports whether the job's work actually ran.
func (r *Runner) RunOnce(ctx context.Context, job Job) (any, bool, error) {
	limiter := r.retryLimiter()
	for attempt := 0; ; attempt++ {
		ran := false
		result, err := r.locker.ProcessWithLock(ctx, job.Data, func(ctx context.Context) (any, error) {
			ran = true
			return job.Func(ctx)
		})

		if !locker.IsRetryable(err) {
			r.record(job, ran, err)
			return result, ran, err
		}

		if attempt >= r.cfg.MaxRetries {
			metrics.WorkerRunsTotal.WithLabelValues(job.Name, "exhausted").Inc()
			return nil, false, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, err)
		}

		r.logger.Debug("Lock contended, requeueing job",
			zap.String("job", job.Name),
			zap.Int("attempt", attempt+1))

		if err := limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}
}

// Run executes job now and then every Interval until ctx is cancelled.
// Job failures are logged and the loop continues; a fatal acquisition
// failure ends the loop and is returned so the process can exit.
func (r *Runner) Run(ctx context.Context, job Job) error {
	r.logger.Info("Starting supervised job",
		zap.String("job", job.Name),
		zap.Duration("interval", r.cfg.Interval))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		_, ran, err := r.RunOnce(ctx, job)
		switch {
		case err == nil:
			if !ran {
				r.logger.Info("Job skipped, lock held elsewhere", zap.String("job", job.Name))
			}
		case locker.IsFatal(err):
			r.logger.Error("Lock store unusable, stopping worker",
				zap.String("job", job.Name),
				zap.Error(err))
			return err
		case errors.Is(err, ErrRetriesExhausted):
			r.logger.Warn("Job skipped, lock still contended after retries",
				zap.String("job", job.Name),
				zap.Int("max_retries", r.cfg.MaxRetries))
		case ctx.Err() != nil:
			r.logger.Info("Worker shutting down", zap.String("job", job.Name))
			return nil
		default:
			r.logger.Error("Job failed", zap.String("job", job.Name), zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			r.logger.Info("Worker shutting down", zap.String("job", job.Name))
			return nil
		}
	}
}

func (r *Runner) record(job Job, ran bool, err error) {
	status := "processed"
	switch {
	case locker.IsFatal(err):
		status = "fatal"
	case err != nil:
		status = "failed"
	case !ran:
		status = "skipped"
	}
	metrics.WorkerRunsTotal.WithLabelValues(job.Name, status).Inc()
}
