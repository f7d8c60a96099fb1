package locker

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResource indicates a lock was requested without a resource name.
	ErrEmptyResource = errors.New("locker: empty resource name")

	// ErrLockReleased indicates an acquire on a handle that was already released.
	ErrLockReleased = errors.New("locker: lock handle already released")
)

// AcquiringError wraps a store failure raised while acquiring a lock
type AcquiringError struct {
	Resource string
	Err      error
}

func (e *AcquiringError) Error() string {
	return fmt.Sprintf("failed to acquire lock %q: %v", e.Resource, e.Err)
}

func (e *AcquiringError) Unwrap() error {
	return e.Err
}

// ReleasingError wraps a store failure raised while releasing a lock
type ReleasingError struct {
	Resource string
	Err      error
}

func (e *ReleasingError) Error() string {
	return fmt.Sprintf("failed to release lock %q: %v", e.Resource, e.Err)
}

func (e *ReleasingError) Unwrap() error {
	return e.Err
}

// FatalAcquiringError means the lock store connection is gone. A supervisor
// receiving it should stop the worker instead of retrying the job.
type FatalAcquiringError struct {
	Resource string
	Err      error
}

func (e *FatalAcquiringError) Error() string {
	return fmt.Sprintf("lock store unusable while acquiring %q: %v", e.Resource, e.Err)
}

func (e *FatalAcquiringError) Unwrap() error {
	return e.Err
}

// KillsWorker marks the error for worker supervisors
func (e *FatalAcquiringError) KillsWorker() bool {
	return true
}

// ShouldRetryError means the lock is held elsewhere and the caller asked to
// be told so it can requeue the work.
type ShouldRetryError struct {
	Resource string
}

func (e *ShouldRetryError) Error() string {
	return fmt.Sprintf("should retry %q", e.Resource)
}

// Retryable marks the error for retry-capable callers
func (e *ShouldRetryError) Retryable() bool {
	return true
}

// IsFatal reports whether err asks for the worker to be stopped
func IsFatal(err error) bool {
	var fatal interface{ KillsWorker() bool }
	return errors.As(err, &fatal) && fatal.KillsWorker()
}

// IsRetryable reports whether err asks for the work to be requeued
func IsRetryable(err error) bool {
	var retry interface{ Retryable() bool }
	return errors.As(err, &retry) && retry.Retryable()
}
