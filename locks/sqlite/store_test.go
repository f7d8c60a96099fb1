package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ebogdum/easylock/locks"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "locks.sqlite3"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreAcquireRelease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := locks.Key{Resource: "job:42", Token: "a"}
	b := locks.Key{Resource: "job:42", Token: "b"}

	if ok, err := s.Acquire(ctx, a, time.Minute); err != nil || !ok {
		t.Fatalf("acquire a: ok %v err %v", ok, err)
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
	if held, err := s.Exists(ctx, a); err != nil || !held {
		t.Fatalf("foreign release dropped a: held %v err %v", held, err)
	}

	if err := s.Release(ctx, a); err != nil {
		t.Fatalf("release a: %v", err)
	}
	if err := s.Release(ctx, a); err != nil {
		t.Fatalf("second release a: %v", err)
	}
	if ok, err := s.Acquire(ctx, b, time.Minute); err != nil || !ok {
		t.Fatalf("expected b to acquire, ok %v err %v", ok, err)
	}
}

func TestSQLiteStoreExpiryAndPrune(t *testing.T) {
	s := newTestStore(t)
	now := time.Unix(1700000000, 0)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()
	a := locks.Key{Resource: "r", Token: "a"}
	b := locks.Key{Resource: "r", Token: "b"}

	if ok, _ := s.Acquire(ctx, a, 10*time.Second); !ok {
		t.Fatal("acquire a failed")
	}
	if ok, _ := s.Acquire(ctx, locks.Key{Resource: "other", Token: "c"}, time.Second); !ok {
		t.Fatal("acquire other failed")
	}

	now = now.Add(5 * time.Second)
	if err := s.Refresh(ctx, a, 10*time.Second); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	pruned, err := s.PruneExpired(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned record, got %d", pruned)
	}

	now = now.Add(11 * time.Second)
	if err := s.Refresh(ctx, a, time.Second); !errors.Is(err, locks.ErrNotHeld) {
		t.Fatalf("expected ErrNotHeld, got %v", err)
	}
	if ok, _ := s.Acquire(ctx, b, time.Second); !ok {
		t.Fatal("expected b to take over expired record")
	}
}

func TestSQLiteStoreClosed(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := s.Acquire(context.Background(), locks.Key{Resource: "r", Token: "a"}, time.Second)
	if !locks.IsConnectionLost(err) {
		t.Fatalf("expected lost connection, got %v", err)
	}
}

func TestSQLiteStoreUnopenablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "locks.sqlite3")
	_, err := NewSQLiteStore(path, nil)
	if err == nil {
		t.Fatal("expected open to fail")
	}
	if locks.IsConnectionLost(err) {
		t.Fatalf("unopenable file carries a result code, got %v", err)
	}
}
