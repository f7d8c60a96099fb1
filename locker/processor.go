package locker

import "context"

// Processor runs work under a lock for host types that already depend on a
// Locker. Embed it or hold it by value, then wire the Locker with
// NewProcessor or SetLocker before the first call.
//
// Unlike Service.ProcessWithLock it never signals contention: a held lock
// always means the work is skipped.
type Processor struct {
	locker Locker
}

// NewProcessor returns a Processor bound to l
func NewProcessor(l Locker) Processor {
	return Processor{locker: l}
}

// SetLocker wires the Locker dependency
func (p *Processor) SetLocker(l Locker) {
	p.locker = l
}

// ProcessWithLock runs work while holding the lock described by w and
// returns (nil, nil) if the lock is held elsewhere. Acquire errors are
// returned unchanged. Calling it before a Locker is wired panics.
func (p *Processor) ProcessWithLock(ctx context.Context, w WithLockData, work Func) (any, error) {
	if p == nil || p.locker == nil {
		panic("locker: Processor used before SetLocker")
	}

	data := w.LockData()
	if err := data.Validate(); err != nil {
		return nil, &AcquiringError{Err: err}
	}

	lock := p.locker.CreateLock(data.Resource, data.TTL)

	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, nil
	}

	defer lock.releaseQuietly(ctx)

	return work(ctx)
}
