// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package cache provides a bounded, thread-safe LRU used to cap the number of
// geolocated addresses held in memory.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	prev      *entry[V]
	next      *entry[V]
	expiresAt time.Time // zero means no expiry
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	Capacity  int
}

// LRU is a least-recently-used map from string keys to V with an optional
// per-entry TTL. Get, Add and Remove are O(1); a doubly-linked list with
// sentinel nodes tracks recency and a map indexes the nodes.
type LRU[V any] struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration
	now      func() time.Time
	onEvict  func(key string, value V)

	items map[string]*entry[V]
	head  *entry[V] // head.next is most recent
	tail  *entry[V] // tail.prev is least recent

	hits      int64
	misses    int64
	evictions int64
}

// Option configures an LRU.
type Option[V any] func(*LRU[V])

// WithTTL expires entries ttl after their last Add. Zero disables expiry.
func WithTTL[V any](ttl time.Duration) Option[V] {
	return func(c *LRU[V]) { c.ttl = ttl }
}

// WithEvictCallback is called, with the lock held, for every capacity eviction.
func WithEvictCallback[V any](fn func(key string, value V)) Option[V] {
	return func(c *LRU[V]) { c.onEvict = fn }
}

// WithClock overrides time.Now for TTL checks.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *LRU[V]) { c.now = now }
}

// NewLRU creates an LRU holding at most capacity entries.
// A capacity below 1 is treated as 1.
func NewLRU[V any](capacity int, opts ...Option[V]) *LRU[V] {
	if capacity < 1 {
		capacity = 1
	}
	c := &LRU[V]{
		capacity: capacity,
		now:      time.Now,
		items:    make(map[string]*entry[V], capacity),
		head:     &entry[V]{},
		tail:     &entry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || c.expired(e) {
		if ok {
			c.unlink(e)
		}
		c.misses++
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	c.hits++
	return e.value, true
}

// Peek returns the value for key without touching recency or stats.
func (c *LRU[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || c.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Add inserts or replaces key. When the cache is full the least recently
// used entry is evicted. Returns true if an eviction happened.
func (c *LRU[V]) Add(key string, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return false
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt}
	c.pushFront(e)
	c.items[key] = e

	evicted := false
	for len(c.items) > c.capacity {
		oldest := c.tail.prev
		c.unlink(oldest)
		c.evictions++
		evicted = true
		if c.onEvict != nil {
			c.onEvict(oldest.key, oldest.value)
		}
	}
	return evicted
}

// Remove deletes key. Returns true if it was present.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.unlink(e)
		return true
	}
	return false
}

// Len returns the number of entries, including ones that expired but were not yet touched.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cap returns the configured capacity.
func (c *LRU[V]) Cap() int {
	return c.capacity
}

// Entries copies every live entry, most recently used first.
func (c *LRU[V]) Entries() map[string]V {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]V, len(c.items))
	for e := c.head.next; e != c.tail; e = e.next {
		if !c.expired(e) {
			out[e.key] = e.value
		}
	}
	return out
}

// Stats returns hit, miss and eviction counters.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.items),
		Capacity:  c.capacity,
	}
}

// lock held from here down

func (c *LRU[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

func (c *LRU[V]) pushFront(e *entry[V]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU[V]) moveToFront(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.pushFront(e)
}

func (c *LRU[V]) unlink(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
	delete(c.items, e.key)
}
