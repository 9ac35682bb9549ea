package store

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// SessionLocker serializes message processing per session id. Messages for
// the same session run one at a time, start to finish, including any external
// operation a confirmation triggers; different sessions proceed in parallel.
type SessionLocker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sem  *semaphore.Weighted
	refs int
}

// NewSessionLocker creates an empty locker.
func NewSessionLocker() *SessionLocker {
	return &SessionLocker{locks: make(map[string]*sessionLock)}
}

// Acquire blocks until the session's lock is held or ctx is done. The
// returned release function must be called exactly once.
func (l *SessionLocker) Acquire(ctx context.Context, sessionID string) (release func(), err error) {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &sessionLock{sem: semaphore.NewWeighted(1)}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		l.unref(sessionID, entry)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.sem.Release(1)
			l.unref(sessionID, entry)
		})
	}, nil
}

// unref drops a reference and evicts the entry when no waiter remains, so the
// map does not grow with one lock per phone number ever seen.
func (l *SessionLocker) unref(sessionID string, entry *sessionLock) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, sessionID)
	}
	l.mu.Unlock()
}
