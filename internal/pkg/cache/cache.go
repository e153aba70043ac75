// Package cache provides in-memory cache that deduplicates concurrent loads.
package cache

import (
	"context"
	"errors"
	"sync"
)

// Storage loads values that are missing in cache.
type Storage[K comparable, V any] interface {
	Load(ctx context.Context, key K) (V, error)
}

// StorageFunc represents function that implements Storage.
type StorageFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Load calls function.
func (f StorageFunc[K, V]) Load(ctx context.Context, key K) (V, error) {
	return f(ctx, key)
}

var errLoadAborted = errors.New("cache: load aborted")

// Manager caches values of immutable resources.
//
// Concurrent loads of the same key share single call of storage.
// Failed loads are not cached.
type Manager[K comparable, V any] struct {
	mutex   sync.RWMutex
	cache   map[K]V
	futures map[K]*inflight[V]
	storage Storage[K, V]
	limit   int
}

// NewManager creates a new instance of Manager.
//
// Zero limit means unlimited amount of cached values.
func NewManager[K comparable, V any](storage Storage[K, V], limit int) *Manager[K, V] {
	return &Manager[K, V]{
		cache:   map[K]V{},
		futures: map[K]*inflight[V]{},
		storage: storage,
		limit:   limit,
	}
}

// Load returns value with the given key, or loads it from storage.
func (m *Manager[K, V]) Load(ctx context.Context, key K) (V, error) {
	if value, ok := m.getFast(key); ok {
		return value, nil
	}
	value, i, leader := m.getSlow(key)
	if i == nil {
		return value, nil
	}
	if !leader {
		select {
		case <-i.done:
			return i.value, i.err
		case <-ctx.Done():
			var empty V
			return empty, ctx.Err()
		}
	}
	i.err = errLoadAborted
	defer m.finish(key, i)
	i.value, i.err = m.storage.Load(ctx, key)
	return i.value, i.err
}

// Len returns amount of cached values.
func (m *Manager[K, V]) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.cache)
}

func (m *Manager[K, V]) getFast(key K) (V, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok := m.cache[key]
	return value, ok
}

func (m *Manager[K, V]) getSlow(key K) (V, *inflight[V], bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if value, ok := m.cache[key]; ok {
		return value, nil, false
	}
	var empty V
	if i, ok := m.futures[key]; ok {
		return empty, i, false
	}
	i := &inflight[V]{done: make(chan struct{})}
	m.futures[key] = i
	return empty, i, true
}

func (m *Manager[K, V]) finish(key K, i *inflight[V]) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	defer close(i.done)
	delete(m.futures, key)
	if i.err != nil {
		return
	}
	if m.limit > 0 && len(m.cache) >= m.limit {
		// Evict arbitrary value.
		for k := range m.cache {
			delete(m.cache, k)
			break
		}
	}
	m.cache[key] = i.value
}

type inflight[V any] struct {
	done  chan struct{}
	value V
	err   error
}
