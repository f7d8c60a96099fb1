package locks

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreAcquireRelease(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := Key{Resource: "job:42", Token: "a"}
	b := Key{Resource: "job:42", Token: "b"}

	ok, err := s.Acquire(ctx, a, time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire a: ok %v err %v", ok, err)
	}
	if ok, err := s.Acquire(ctx, b, time.Minute); err != nil || ok {
		t.Fatalf("expected b to be refused, ok %v err %v", ok, err)
	}
	if ok, err := s.Acquire(ctx, a, time.Minute); err != nil || !ok {
		t.Fatalf("expected a to re-acquire, ok %v err %v", ok, err)
	}

	// Releasing with a foreign token must not drop a's record
	if err := s.Release(ctx, b); err != nil {
		t.Fatalf("release b: %v", err)
	}
	if held, _ := s.Exists(ctx, a); !held {
		t.Fatal("record of a removed by b")
	}

	if err := s.Release(ctx, a); err != nil {
		t.Fatalf("release a: %v", err)
	}
	if err := s.Release(ctx, a); err != nil {
		t.Fatalf("second release a: %v", err)
	}
	if ok, err := s.Acquire(ctx, b, time.Minute); err != nil || !ok {
		t.Fatalf("expected b to acquire after release, ok %v err %v", ok, err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1000, 0)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()
	a := Key{Resource: "r", Token: "a"}
	b := Key{Resource: "r", Token: "b"}

	if ok, _ := s.Acquire(ctx, a, 10*time.Second); !ok {
		t.Fatal("acquire a failed")
	}

	now = now.Add(5 * time.Second)
	if err := s.Refresh(ctx, a, 10*time.Second); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	now = now.Add(9 * time.Second)
	if ok, _ := s.Acquire(ctx, b, time.Second); ok {
		t.Fatal("refreshed record expired early")
	}

	now = now.Add(2 * time.Second)
	if held, _ := s.Exists(ctx, a); held {
		t.Fatal("expected record of a to be expired")
	}
	if err := s.Refresh(ctx, a, time.Second); !errors.Is(err, ErrNotHeld) {
		t.Fatalf("expected ErrNotHeld, got %v", err)
	}
	if ok, _ := s.Acquire(ctx, b, time.Second); !ok {
		t.Fatal("expected b to acquire expired resource")
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := s.Acquire(context.Background(), Key{Resource: "r", Token: "a"}, time.Second)
	if !IsConnectionLost(err) {
		t.Fatalf("expected connection lost, got %v", err)
	}
	if !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed in chain, got %v", err)
	}
	if err := s.Ping(context.Background()); !IsConnectionLost(err) {
		t.Fatalf("expected ping to fail, got %v", err)
	}
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Acquire(ctx, Key{Resource: "r", Token: "a"}, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if IsConnectionLost(err) {
		t.Fatal("cancellation must not look like a lost connection")
	}
}
