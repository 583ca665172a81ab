// Package lock provides a mutex keyed by string. Holders of different keys
// never contend; holders of the same key serialize.
package lock

import (
	"context"
	"sync"
)

type entry struct {
	// sem is a one-slot semaphore so waiters can abandon the wait.
	sem  chan struct{}
	refs int
}

// Keyed is a set of mutexes created on demand and freed when unused.
// The zero value is ready to use.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Lock blocks until key is held or ctx is done. On success the returned
// function releases the key; it must be called exactly once.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	e := k.acquire(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.release(key, e)
		})
	}, nil
}

// Len returns the number of keys currently held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) acquire(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.entries == nil {
		k.entries = make(map[string]*entry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}
