// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package buffer holds the most recent threats in arrival order.
package buffer

import (
	"sync"

	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
)

// DefaultCapacity keeps the last 50 threats plus the newest one.
const DefaultCapacity = 51

// ThreatBuffer is a fixed-capacity ring of threats. When full, Append drops
// the oldest entry. Order is append order, not timestamp order.
type ThreatBuffer struct {
	mu    sync.RWMutex
	items []models.Threat
	head  int // index of the oldest entry
	size  int
}

// New creates a buffer holding at most capacity threats. A capacity below 1
// uses DefaultCapacity.
func New(capacity int) *ThreatBuffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &ThreatBuffer{items: make([]models.Threat, capacity)}
}

// Append adds t at the tail and reports whether an older threat was evicted.
func (b *ThreatBuffer) Append(t models.Threat) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.items)
	evicted := false
	if b.size == capacity {
		b.items[b.head] = t
		b.head = (b.head + 1) % capacity
		evicted = true
		metrics.BufferEvictions.Inc()
	} else {
		b.items[(b.head+b.size)%capacity] = t
		b.size++
	}
	metrics.BufferSize.Set(float64(b.size))
	return evicted
}

// Snapshot returns a copy of the buffered threats, oldest first. Later
// appends are not visible through it.
func (b *ThreatBuffer) Snapshot() []models.Threat {
	out, _ := b.Latest(0)
	return out
}

// Latest copies up to n of the newest threats, oldest first, and reports
// how many are buffered in total. n <= 0 means all of them.
func (b *ThreatBuffer) Latest(n int) ([]models.Threat, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]models.Threat, n)
	capacity := len(b.items)
	skip := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.items[(b.head+skip+i)%capacity]
	}
	return out, b.size
}

// Len returns the number of buffered threats.
func (b *ThreatBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *ThreatBuffer) Cap() int {
	return len(b.items)
}
