package locker

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	logutil "github.com/ebogdum/easylock/core/log"
	"github.com/ebogdum/easylock/locks"
)

// Factory builds Lock handles bound to a store
type Factory struct {
	store  locks.Store
	logger *zap.Logger
	mode   logutil.SanitizationMode
	now    func() time.Time
}

// NewFactory creates a factory that hands out locks backed by store
func NewFactory(store locks.Store, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		store:  store,
		logger: logger,
		mode:   logutil.ProductionMode,
		now:    time.Now,
	}
}

// SetSanitizationMode controls how resource names appear in lock logs
func (f *Factory) SetSanitizationMode(mode logutil.SanitizationMode) {
	f.mode = mode
}

// CreateLock returns an unacquired handle with a fresh owner token.
// It does not contact the store.
func (f *Factory) CreateLock(resource string, ttl time.Duration) *Lock {
	return &Lock{
		key:    locks.Key{Resource: resource, Token: uuid.NewString()},
		ttl:    ttl,
		store:  f.store,
		logger: f.logger,
		mode:   f.mode,
		state:  StateUnacquired,
		now:    f.now,
	}
}
