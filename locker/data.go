package locker

import "time"

// Data describes what to lock and how. A zero TTL means the service default.
type Data struct {
	Resource    string
	TTL         time.Duration
	ShouldRetry bool
}

// WithLockData is implemented by values that describe their own lock
type WithLockData interface {
	LockData() Data
}

// LockData lets Data be passed wherever WithLockData is accepted
func (d Data) LockData() Data {
	return d
}

// Validate checks that the data names a resource
func (d Data) Validate() error {
	if d.Resource == "" {
		return ErrEmptyResource
	}
	return nil
}
