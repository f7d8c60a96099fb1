package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Set the key when free, or extend it when the token already owns it
var acquireScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
if redis.call("set", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return 1
end
return 0
`)

// Only delete if we own the lock
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Only extend if we own the lock
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// RedisStore implements Store using Redis keys with a PX expiration
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// RedisOptions configures NewRedisStore
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStore creates a new Redis-based lock store
func NewRedisStore(opts RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, opts.KeyPrefix, logger), nil
}

// NewRedisStoreFromClient wraps an existing client. The store owns the
// client from then on and closes it in Close.
func NewRedisStoreFromClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "easylock:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisStore) lockKey(resource string) string {
	return s.prefix + "lock:" + resource
}

// Acquire attempts to set the lock key for the given resource
func (s *RedisStore) Acquire(ctx context.Context, key Key, ttl time.Duration) (bool, error) {
	res, err := acquireScript.Run(ctx, s.client, []string{s.lockKey(key.Resource)}, key.Token, millis(ttl)).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock for key %s: %w", key.Resource, s.classify(err))
	}

	acquired := res == 1
	if acquired {
		s.logger.Debug("Lock record stored",
			zap.String("key", key.Resource),
			zap.Duration("ttl", ttl))
	} else {
		s.logger.Debug("Lock already held", zap.String("key", key.Resource))
	}

	return acquired, nil
}

// Release deletes the lock key if it still holds our token
func (s *RedisStore) Release(ctx context.Context, key Key) error {
	deleted, err := releaseScript.Run(ctx, s.client, []string{s.lockKey(key.Resource)}, key.Token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock for key %s: %w", key.Resource, s.classify(err))
	}

	if deleted == 1 {
		s.logger.Debug("Lock record deleted", zap.String("key", key.Resource))
	} else {
		s.logger.Debug("Lock not owned or already released", zap.String("key", key.Resource))
	}

	return nil
}

// Refresh extends the expiration of a key we own
func (s *RedisStore) Refresh(ctx context.Context, key Key, ttl time.Duration) error {
	res, err := refreshScript.Run(ctx, s.client, []string{s.lockKey(key.Resource)}, key.Token, millis(ttl)).Int64()
	if err != nil {
		return fmt.Errorf("failed to refresh lock for key %s: %w", key.Resource, s.classify(err))
	}
	if res != 1 {
		return ErrNotHeld
	}
	return nil
}

// Exists reports whether the lock key currently holds our token
func (s *RedisStore) Exists(ctx context.Context, key Key) (bool, error) {
	val, err := s.client.Get(ctx, s.lockKey(key.Resource)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read lock for key %s: %w", key.Resource, s.classify(err))
	}
	return val == key.Token, nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.classify(err)
	}
	return nil
}

// Close closes the Redis client connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) classify(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return &ConnectionError{Err: err}
	}
	return WrapConnError(err)
}

// millis converts ttl to a PX argument. Redis rejects a zero expiry.
func millis(ttl time.Duration) int64 {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return ms
}
