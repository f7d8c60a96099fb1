// Package locker wraps a locks.Store with TTL bound lock handles and runs
// units of work while holding them.
package locker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	logutil "github.com/ebogdum/easylock/core/log"
	"github.com/ebogdum/easylock/locks"
	"github.com/ebogdum/easylock/metrics"
)

// DefaultTTL applies to locks created without a TTL
const DefaultTTL = 300 * time.Second

// Func is a unit of work run while a lock is held
type Func func(ctx context.Context) (any, error)

// Locker is the contract application components depend on
type Locker interface {
	// CreateLock returns an unacquired handle for resource. A ttl of zero
	// or less means the default TTL.
	CreateLock(resource string, ttl time.Duration) *Lock

	// ProcessWithLock runs work while holding the lock described by data.
	// It returns (nil, nil) when the lock is held elsewhere and data does
	// not ask for a retry.
	ProcessWithLock(ctx context.Context, data Data, work Func) (any, error)
}

// Option configures a Service
type Option func(*Service)

// WithLogger routes lock events to logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultTTL overrides DefaultTTL. Non-positive values are ignored.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithFatalOnDisconnect turns a lost store connection during acquire into a
// FatalAcquiringError. Enable it when a worker supervisor handles that error.
func WithFatalOnDisconnect(enabled bool) Option {
	return func(s *Service) {
		s.fatalOnDisconnect = enabled
	}
}

// WithSanitizationMode controls how resource names appear in logs
func WithSanitizationMode(mode logutil.SanitizationMode) Option {
	return func(s *Service) {
		s.mode = mode
	}
}

// Service is the default Locker
type Service struct {
	store             locks.Store
	logger            *zap.Logger
	defaultTTL        time.Duration
	fatalOnDisconnect bool
	mode              logutil.SanitizationMode

	factoryOnce sync.Once
	factory     *Factory
}

// NewService creates a lock service on top of store
func NewService(store locks.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		logger:     zap.NewNop(),
		defaultTTL: DefaultTTL,
		mode:       logutil.ProductionMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) getFactory() *Factory {
	s.factoryOnce.Do(func() {
		s.factory = NewFactory(s.store, s.logger)
		s.factory.SetSanitizationMode(s.mode)
	})
	return s.factory
}

// CreateLock returns an unacquired handle, applying the default TTL
func (s *Service) CreateLock(resource string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.getFactory().CreateLock(resource, ttl)
}

// ProcessWithLock acquires the lock described by data, runs work and
// releases the lock on every exit path, panics included.
//
// A lost store connection is returned as *FatalAcquiringError when the
// service was built WithFatalOnDisconnect; every other acquire failure is
// returned unchanged. A held lock yields *ShouldRetryError if data.ShouldRetry
// is set and (nil, nil) otherwise.
func (s *Service) ProcessWithLock(ctx context.Context, data Data, work Func) (any, error) {
	if err := data.Validate(); err != nil {
		metrics.ProcessWithLockTotal.WithLabelValues("error").Inc()
		return nil, &AcquiringError{Err: err}
	}

	lock := s.CreateLock(data.Resource, data.TTL)

	acquired, err := lock.Acquire(ctx)
	if err != nil {
		if s.fatalOnDisconnect && locks.IsConnectionLost(err) {
			metrics.ProcessWithLockTotal.WithLabelValues("fatal").Inc()
			s.logger.Error("Lock store connection lost, worker should stop",
				lock.resourceField(), zap.Error(err))
			return nil, &FatalAcquiringError{Resource: data.Resource, Err: err}
		}
		metrics.ProcessWithLockTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if !acquired {
		if data.ShouldRetry {
			metrics.ProcessWithLockTotal.WithLabelValues("retry").Inc()
			return nil, &ShouldRetryError{Resource: data.Resource}
		}
		metrics.ProcessWithLockTotal.WithLabelValues("skipped").Inc()
		s.logger.Debug("Lock held elsewhere, skipping", lock.resourceField())
		return nil, nil
	}

	defer lock.releaseQuietly(ctx)

	metrics.ProcessWithLockTotal.WithLabelValues("processed").Inc()
	return work(ctx)
}

// Ping checks the underlying store
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// WithLock is a typed ProcessWithLock. The bool reports whether work ran.
func WithLock[T any](ctx context.Context, l Locker, data Data, work func(ctx context.Context) (T, error)) (T, bool, error) {
	var (
		out T
		ran bool
	)
	_, err := l.ProcessWithLock(ctx, data, func(ctx context.Context) (any, error) {
		ran = true
		v, err := work(ctx)
		out = v
		return v, err
	})
	return out, ran, err
}
