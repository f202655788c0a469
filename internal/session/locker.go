package session

import "sync"

// Locker serializes read-modify-write cycles on a single session within the
// process. Locks are created on demand and dropped when nobody holds them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates an empty locker
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyLock)}
}

// Lock blocks until the session id is free and returns the matching unlock
func (l *Locker) Lock(id string) func() {
	l.mu.Lock()
	kl, ok := l.locks[id]
	if !ok {
		kl = &keyLock{}
		l.locks[id] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
