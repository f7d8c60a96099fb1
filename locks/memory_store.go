package locks

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	token     string
	expiresAt time.Time
}

// MemoryStore provides in-process lock records for local/single-node deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	closed  bool
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory lock store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for expiration.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// lookup returns the live record for resource. Caller must hold s.mu.
func (s *MemoryStore) lookup(resource string) (memoryRecord, bool) {
	rec, ok := s.records[resource]
	if !ok {
		return memoryRecord{}, false
	}
	if !s.now().Before(rec.expiresAt) {
		delete(s.records, resource)
		return memoryRecord{}, false
	}
	return rec, true
}

func (s *MemoryStore) check(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if s.closed {
		return &ConnectionError{Err: ErrStoreClosed}
	}
	return nil
}

// Acquire records the key if the resource is free or already ours.
func (s *MemoryStore) Acquire(ctx context.Context, key Key, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return false, err
	}

	if rec, held := s.lookup(key.Resource); held && rec.token != key.Token {
		return false, nil
	}

	s.records[key.Resource] = memoryRecord{token: key.Token, expiresAt: s.now().Add(ttl)}
	return true, nil
}

// Release removes the record if it belongs to key.
func (s *MemoryStore) Release(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}

	if rec, held := s.lookup(key.Resource); held && rec.token == key.Token {
		delete(s.records, key.Resource)
	}
	return nil
}

// Refresh pushes the expiration of key's record to now+ttl.
func (s *MemoryStore) Refresh(ctx context.Context, key Key, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}

	rec, held := s.lookup(key.Resource)
	if !held || rec.token != key.Token {
		return ErrNotHeld
	}
	rec.expiresAt = s.now().Add(ttl)
	s.records[key.Resource] = rec
	return nil
}

// Exists reports whether key holds its resource.
func (s *MemoryStore) Exists(ctx context.Context, key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return false, err
	}

	rec, held := s.lookup(key.Resource)
	return held && rec.token == key.Token, nil
}

// Ping fails once the store is closed.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx)
}

// Close drops all records. Every later call fails with a ConnectionError.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]memoryRecord)
	s.closed = true
	return nil
}
