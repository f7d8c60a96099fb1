package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	logutil "github.com/ebogdum/easylock/core/log"
	"github.com/ebogdum/easylock/locks"
	"github.com/ebogdum/easylock/metrics"
)

// State is the lifecycle position of a Lock handle
type State int

const (
	StateUnacquired State = iota
	StateHeld
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnacquired:
		return "unacquired"
	case StateHeld:
		return "held"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Lock is a handle on one acquisition of a resource. It is owned by the
// goroutine that created it and must not be shared.
type Lock struct {
	key       locks.Key
	ttl       time.Duration
	store     locks.Store
	logger    *zap.Logger
	mode      logutil.SanitizationMode
	state     State
	expiresAt time.Time
	now       func() time.Time
}

// Resource returns the resource name the handle is bound to
func (l *Lock) Resource() string {
	return l.key.Resource
}

// TTL returns the lifetime requested on acquire
func (l *Lock) TTL() time.Duration {
	return l.ttl
}

// State returns the current lifecycle state
func (l *Lock) State() State {
	return l.state
}

func (l *Lock) resourceField() zap.Field {
	return logutil.Resource(l.mode, l.key.Resource)
}

// Acquire tries once to take the lock. It returns false without error when
// the resource is held elsewhere. Store failures come back as *AcquiringError.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	if l.state == StateReleased {
		return false, ErrLockReleased
	}
	if l.key.Resource == "" {
		return false, &AcquiringError{Err: ErrEmptyResource}
	}

	start := l.now()
	acquired, err := l.store.Acquire(ctx, l.key, l.ttl)
	metrics.LockOperationDuration.WithLabelValues("acquire").Observe(l.now().Sub(start).Seconds())

	if err != nil {
		metrics.LockOperationsTotal.WithLabelValues("acquire", "failure").Inc()
		l.logger.Warn("Failed to acquire lock", l.resourceField(), zap.Error(err))
		return false, &AcquiringError{Resource: l.key.Resource, Err: err}
	}

	if !acquired {
		metrics.LockOperationsTotal.WithLabelValues("acquire", "contended").Inc()
		if l.state == StateHeld {
			// our hold expired and someone else took the resource
			l.state = StateUnacquired
			l.expiresAt = time.Time{}
			metrics.ActiveLocks.Dec()
			l.logger.Warn("Lock lost to another holder", l.resourceField())
			return false, nil
		}
		l.logger.Debug("Lock held elsewhere", l.resourceField())
		return false, nil
	}

	metrics.LockOperationsTotal.WithLabelValues("acquire", "success").Inc()
	if l.state != StateHeld {
		metrics.ActiveLocks.Inc()
	}
	l.state = StateHeld
	l.expiresAt = start.Add(l.ttl)
	l.logger.Debug("Lock acquired", l.resourceField(), zap.Duration("ttl", l.ttl))
	return true, nil
}

// Release gives the lock back. Releasing a handle that is not held is a
// no-op, so Release is safe to call more than once.
func (l *Lock) Release(ctx context.Context) error {
	if l.state != StateHeld {
		return nil
	}
	l.state = StateReleased
	l.expiresAt = time.Time{}
	metrics.ActiveLocks.Dec()

	start := l.now()
	err := l.store.Release(ctx, l.key)
	metrics.LockOperationDuration.WithLabelValues("release").Observe(l.now().Sub(start).Seconds())

	if err != nil {
		metrics.LockOperationsTotal.WithLabelValues("release", "failure").Inc()
		return &ReleasingError{Resource: l.key.Resource, Err: err}
	}

	metrics.LockOperationsTotal.WithLabelValues("release", "success").Inc()
	l.logger.Debug("Lock released", l.resourceField())
	return nil
}

// Refresh extends the hold by ttl, or by the handle's TTL when ttl is zero.
// If the store no longer has our record the handle drops back to unacquired
// and locks.ErrNotHeld is returned.
func (l *Lock) Refresh(ctx context.Context, ttl time.Duration) error {
	if l.state != StateHeld {
		return locks.ErrNotHeld
	}
	if ttl <= 0 {
		ttl = l.ttl
	}

	start := l.now()
	err := l.store.Refresh(ctx, l.key, ttl)
	metrics.LockOperationDuration.WithLabelValues("refresh").Observe(l.now().Sub(start).Seconds())

	if err != nil {
		metrics.LockOperationsTotal.WithLabelValues("refresh", "failure").Inc()
		if errors.Is(err, locks.ErrNotHeld) {
			l.state = StateUnacquired
			l.expiresAt = time.Time{}
			metrics.ActiveLocks.Dec()
			l.logger.Warn("Lock lost before refresh", l.resourceField())
		}
		return fmt.Errorf("failed to refresh lock %q: %w", l.key.Resource, err)
	}

	metrics.LockOperationsTotal.WithLabelValues("refresh", "success").Inc()
	l.expiresAt = start.Add(ttl)
	l.logger.Debug("Lock refreshed", l.resourceField(), zap.Duration("ttl", ttl))
	return nil
}

// IsAcquired asks the store whether this handle still holds the resource
func (l *Lock) IsAcquired(ctx context.Context) (bool, error) {
	if l.state != StateHeld {
		return false, nil
	}
	return l.store.Exists(ctx, l.key)
}

// RemainingLifetime is the time left before the store may expire the hold,
// as seen from the last successful acquire or refresh.
func (l *Lock) RemainingLifetime() time.Duration {
	if l.state != StateHeld {
		return 0
	}
	if remaining := l.expiresAt.Sub(l.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// IsExpired reports whether the hold has run past its TTL
func (l *Lock) IsExpired() bool {
	return l.RemainingLifetime() <= 0
}

// releaseQuietly releases the lock on the way out of a critical section.
// Failures are logged so they never replace the work's own result.
func (l *Lock) releaseQuietly(ctx context.Context) {
	if err := l.Release(context.WithoutCancel(ctx)); err != nil {
		l.logger.Error("Failed to release lock", l.resourceField(), zap.Error(err))
	}
}
