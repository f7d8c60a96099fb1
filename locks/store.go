// Package locks defines the persisting store that backs easylock and ships the
// in-memory and Redis implementations. SQL backed stores live in the postgres
// and sqlite subpackages.
package locks

import (
	"context"
	"errors"
	"time"
)

// Common store errors
var (
	ErrNotHeld     = errors.New("lock not held by this key")
	ErrStoreClosed = errors.New("lock store is closed")
)

// Key identifies one acquisition of a resource. Token is unique per lock
// handle so that only the writer of a record can refresh or release it.
type Key struct {
	Resource string
	Token    string
}

// Store defines the interface for persisting lock records
type Store interface {
	// Acquire records key as the holder of key.Resource for ttl.
	// Returns false if the resource is held by another token.
	// Acquiring again with the same token extends the expiration.
	Acquire(ctx context.Context, key Key, ttl time.Duration) (bool, error)

	// Release removes the record if it still belongs to key.Token.
	// Releasing a record that is gone or owned by someone else is a no-op.
	Release(ctx context.Context, key Key) error

	// Refresh extends the expiration of a record owned by key.Token.
	// Returns ErrNotHeld if the record expired or changed hands.
	Refresh(ctx context.Context, key Key, ttl time.Duration) error

	// Exists reports whether key.Token currently holds key.Resource
	Exists(ctx context.Context, key Key) (bool, error)

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the store and releases any resources
	Close() error
}
