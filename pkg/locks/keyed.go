package locks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// KeyedMutex serialises writers per resource-and-period key. Keys are plain
// strings such as "teacher:{id}:{day}:{year}:{semester}"; a single schedule
// mutation locks both its teacher key and its classroom key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty lock table.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Acquire locks every key, always in lexicographic order so that two callers
// locking overlapping key sets cannot deadlock. It blocks until all keys are
// held, the timeout elapses, or the context is cancelled. On success the
// returned release function must be called exactly once.
func (k *KeyedMutex) Acquire(ctx context.Context, timeout time.Duration, keys ...string) (func(), error) {
	ordered := dedupeSorted(keys)

	deadline := time.Now().Add(timeout)
	held := make([]string, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.unlock(held[i])
		}
	}

	for _, key := range ordered {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			release()
			return nil, context.DeadlineExceeded
		}
		if err := k.lock(ctx, key, remaining); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}
	return release, nil
}

func (k *KeyedMutex) lock(ctx context.Context, key string, timeout time.Duration) error {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-timer.C:
		k.drop(key)
		return context.DeadlineExceeded
	case <-ctx.Done():
		k.drop(key)
		return ctx.Err()
	}
}

func (k *KeyedMutex) unlock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		return
	}
	<-e.ch
	k.drop(key)
}

func (k *KeyedMutex) drop(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(k.locks, key)
	}
}

func dedupeSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)
	return ordered
}
