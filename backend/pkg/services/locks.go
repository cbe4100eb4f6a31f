package services

import (
	"strings"
	"sync"

	"github.com/leapcode/keymanager/core/pkg/models"
)

// pairLocks serializes read-modify-write sequences per (address, private) pair.
// Entries are dropped once nobody holds or waits for them.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: map[string]*pairLock{}}
}

// Lock blocks until the pair is free and returns its unlock func. Callers needing
// both kinds of one address take the private lock first.
func (l *pairLocks) Lock(address string, private bool) func() {
	id := strings.ToLower(address) + ":" + models.KeyKind(private)

	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &pairLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *pairLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
