package redisclient

import (
	"context"
	"sync"
	"time"
)

type localLock struct {
	ch   chan struct{}
	refs int
}

// localDoctorLocker is the single-process Locker used when Redis is not
// configured. A doctor's entry lives only while someone holds or waits for it.
type localDoctorLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
	wait  time.Duration
}

// NewLocalDoctorLocker waits up to wait for a busy doctor before returning
// ErrLockNotAcquired. A non-positive wait blocks until ctx is done.
func NewLocalDoctorLocker(wait time.Duration) Locker {
	return &localDoctorLocker{
		locks: make(map[string]*localLock),
		wait:  wait,
	}
}

func (l *localDoctorLocker) acquireRef(doctorID string) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk, ok := l.locks[doctorID]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[doctorID] = lk
	}
	lk.refs++
	return lk
}

func (l *localDoctorLocker) releaseRef(doctorID string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, doctorID)
	}
}

func (l *localDoctorLocker) WithDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context) error) error {
	lk := l.acquireRef(doctorID)
	defer l.releaseRef(doctorID, lk)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case lk.ch <- struct{}{}:
	case <-timeout:
		return ErrLockNotAcquired
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lk.ch }()

	return fn(ctx)
}
