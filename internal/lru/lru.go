// Package lru provides a fixed capacity least-recently-used cache.
//
// The cache is not safe for concurrent use. Callers sharing an instance across
// goroutines must synchronize access themselves.
package lru

import (
	"errors"
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// ErrNotFound is returned by Get for keys that are not cached.
var ErrNotFound = errors.New("lru: key not found")

// EvictFunc is called for every entry that leaves the cache, including
// capacity evictions, Remove and Clear.
type EvictFunc[K comparable, V any] func(key K, value V)

// Cache maps keys to values and evicts the least recently used entry once
// its capacity is exceeded.
type Cache[K comparable, V any] struct {
	items    *simplelru.LRU[K, V]
	capacity int
}

// New creates a cache holding at most capacity entries.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	return NewWithEvict[K, V](capacity, nil)
}

// NewWithEvict creates a cache that reports evictions to onEvict.
func NewWithEvict[K comparable, V any](capacity int, onEvict EvictFunc[K, V]) (*Cache[K, V], error) {
	var cb simplelru.EvictCallback[K, V]
	if onEvict != nil {
		cb = simplelru.EvictCallback[K, V](onEvict)
	}
	items, err := simplelru.NewLRU[K, V](capacity, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &Cache[K, V]{items: items, capacity: capacity}, nil
}

// Put inserts or replaces a value and marks it most recently used.
func (c *Cache[K, V]) Put(key K, value V) {
	c.items.Add(key, value)
}

// Get returns the value and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, error) {
	v, ok := c.items.Get(key)
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return v, nil
}

// Exist reports whether key is cached without touching its recency.
func (c *Cache[K, V]) Exist(key K) bool {
	return c.items.Contains(key)
}

// Remove drops a key. It reports whether the key was present.
func (c *Cache[K, V]) Remove(key K) bool {
	return c.items.Remove(key)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.items.Purge()
}

// Size returns the number of cached entries.
func (c *Cache[K, V]) Size() int {
	return c.items.Len()
}

// Capacity returns the maximum number of entries.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}
