package indexer

import "sync"

// KeyedLock serializes work per key. Concurrent re-index of the same
// (owner, fileKey) would otherwise race on the whole-row upsert.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLock creates an empty lock set.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*keyLock)}
}

// Acquire blocks until the key's lock is held and returns the release
// function. Lock entries are dropped once the last holder releases.
func (k *KeyedLock) Acquire(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
