// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package concurrent provides small concurrency-safe containers.
package concurrent

import "sync"

// Cache is a concurrency-safe memo table. Values are computed at most once
// per key, even when many requests race on the same key.
type Cache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

// NewCache initializes a [Cache].
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]V),
	}
}

// Get returns the value cached for k, if any.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.data[k]
	return v, ok
}

// GetOr returns the value cached for k or computes, stores and returns it.
// Errors from f are not cached.
func (c *Cache[K, V]) GetOr(k K, f func() (V, error)) (V, error) {
	v, ok := c.Get(k)
	if ok {
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok = c.data[k]
	if ok {
		return v, nil
	}

	v, err := f()
	if err != nil {
		return v, err
	}

	c.data[k] = v
	return v, nil
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// Range calls f for every cached entry. f must not call back into c.
func (c *Cache[K, V]) Range(f func(K, V)) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for k, v := range c.data {
		f(k, v)
	}
}
