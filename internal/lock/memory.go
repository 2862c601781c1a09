package lock

import (
	"context"
	"sync"
	"time"

	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

type memoryEntry struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker is a per-key mutex for single process deployments and tests
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryEntry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memoryEntry)}
}

func (l *MemoryLocker) WithLock(ctx context.Context, req types.LockRequest, fn func(ctx context.Context) error) error {
	entry := l.acquireEntry(req.Key)
	defer l.releaseEntry(req.Key)

	if err := l.wait(ctx, entry, req); err != nil {
		return err
	}
	defer func() { <-entry.ch }()

	return fn(ctx)
}

func (l *MemoryLocker) wait(ctx context.Context, entry *memoryEntry, req types.LockRequest) error {
	timeout := req.GetTimeout()
	if timeout <= 0 {
		select {
		case entry.ch <- struct{}{}:
			return nil
		default:
			return errLockHeld(req.Key)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case entry.ch <- struct{}{}:
		return nil
	case <-timer.C:
		return errLockHeld(req.Key)
	case <-ctx.Done():
		return ierr.WithError(ctx.Err()).
			WithHint("Context ended while waiting for lock").
			WithReportableDetails(map[string]interface{}{"lock_key": req.Key}).
			Mark(ierr.ErrTimeout)
	}
}

func (l *MemoryLocker) acquireEntry(key string) *memoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	if !ok {
		e = &memoryEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *MemoryLocker) releaseEntry(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

func errLockHeld(key string) error {
	return ierr.NewErrorf("lock %s is held", key).
		WithHint("Another process is working on this resource").
		WithReportableDetails(map[string]interface{}{"lock_key": key}).
		Mark(ierr.ErrTimeout)
}
