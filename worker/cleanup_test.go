package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingPruner struct {
	calls int32
	err   error
}

func (p *countingPruner) PruneExpired(ctx context.Context) (int, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.err != nil {
		return 0, p.err
	}
	return 2, nil
}

func TestStartCleanupWorker(t *testing.T) {
	pruner := &countingPruner{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartCleanupWorker(ctx, pruner, time.Millisecond, zap.NewNop())

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&pruner.calls) < 2 {
		select {
		case <-deadline:
			t.Fatal("cleanup worker did not run")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestPruneExpiredWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := pruneExpired(context.Background(), &countingPruner{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	count, err := pruneExpired(context.Background(), &countingPruner{})
	if err != nil || count != 2 {
		t.Fatalf("expected 2 pruned, got %d err %v", count, err)
	}
}
