package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := NewRedisStoreFromClient(client, "test:", nil)
	t.Cleanup(func() {
		_ = store.Close()
		mr.Close()
	})
	return store, mr
}

func TestRedisStoreAcquireRelease(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	a := Key{Resource: "job:42", Token: "a"}
	b := Key{Resource: "job:42", Token: "b"}

	if ok, err := s.Acquire(ctx, a, time.Minute); err != nil || !ok {
		t.Fatalf("acquire a: ok %v err %v", ok, err)
	}
	if got, _ := mr.Get("test:lock:job:42"); got != "a" {
		t.Fatalf("expected token a in redis, got %q", got)
	}
	if ok, err := s.Acquire(ctx, b, time.Minute); err != nil || ok {
		t.Fatalf("expected b to be refused, ok %v err %v", ok, err)
	}
	if ok, err := s.Acquire(ctx, a, time.Minute); err != nil || !ok {
		t.Fatalf("expected a to re-acquire, ok %v err %v", ok, err)
	}

	if err := s.Release(ctx, b); err != nil {
		t.Fatalf("release b: %v", err)
	}
	if !mr.Exists("test:lock:job:42") {
		t.Fatal("foreign release removed the key")
	}

	if err := s.Release(ctx, a); err != nil {
		t.Fatalf("release a: %v", err)
	}
	if mr.Exists("test:lock:job:42") {
		t.Fatal("key not removed on release")
	}
	if err := s.Release(ctx, a); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if ok, err := s.Acquire(ctx, b, time.Minute); err != nil || !ok {
		t.Fatalf("expected b to acquire, ok %v err %v", ok, err)
	}
}

func TestRedisStoreTTL(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	a := Key{Resource: "r", Token: "a"}
	b := Key{Resource: "r", Token: "b"}

	if ok, _ := s.Acquire(ctx, a, 2*time.Second); !ok {
		t.Fatal("acquire a failed")
	}
	if ttl := mr.TTL("test:lock:r"); ttl != 2*time.Second {
		t.Fatalf("expected 2s ttl, got %v", ttl)
	}

	if err := s.Refresh(ctx, a, 5*time.Second); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ttl := mr.TTL("test:lock:r"); ttl != 5*time.Second {
		t.Fatalf("expected 5s ttl after refresh, got %v", ttl)
	}

	mr.FastForward(6 * time.Second)

	if held, err := s.Exists(ctx, a); err != nil || held {
		t.Fatalf("expected expired record, held %v err %v", held, err)
	}
	if err := s.Refresh(ctx, a, time.Second); !errors.Is(err, ErrNotHeld) {
		t.Fatalf("expected ErrNotHeld, got %v", err)
	}
	if ok, _ := s.Acquire(ctx, b, time.Second); !ok {
		t.Fatal("expected b to acquire after expiry")
	}
}

func TestRedisStoreConnectionLost(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	mr.Close()

	_, err := s.Acquire(ctx, Key{Resource: "r", Token: "a"}, time.Second)
	if err == nil {
		t.Fatal("expected acquire to fail with redis down")
	}
	if !IsConnectionLost(err) {
		t.Fatalf("expected a lost connection, got %v", err)
	}
}

func TestRedisStoreClosedClient(t *testing.T) {
	s, _ := newRedisStore(t)
	_ = s.client.Close()

	err := s.Ping(context.Background())
	if !IsConnectionLost(err) {
		t.Fatalf("expected closed client to be a lost connection, got %v", err)
	}
}
