package redisclient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is the single-process Locker, used when Redis is not configured and in tests.
type KeyedMutex struct {
	mu   sync.Mutex
	keys map[string]*keyedEntry
	wait time.Duration
}

func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{keys: make(map[string]*keyedEntry), wait: wait}
}

func (m *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := m.ref(key)
	defer m.unref(key, e)

	timer := time.NewTimer(m.wait)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
	case <-timer.C:
		return ErrLockNotAcquired
	}
	defer func() { <-e.ch }()

	return fn(ctx)
}

func (m *KeyedMutex) ref(key string) *keyedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	return e
}

func (m *KeyedMutex) unref(key string, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

// held reports the number of keys with a waiter or holder.
func (m *KeyedMutex) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
