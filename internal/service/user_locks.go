package service

import "sync"

// userLocks serializes mutations and cookie checks per user key. Entries live
// as long as the process, like the records they guard.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires userKey's lock and returns its release.
func (l *userLocks) lock(userKey string) func() {
	l.mu.Lock()
	m, ok := l.locks[userKey]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userKey] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
