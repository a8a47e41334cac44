// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package geo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/threatfeed/internal/geostore"
	"github.com/tomtom215/threatfeed/internal/models"
)

// fakeProvider answers from a fixed table after an optional delay.
type fakeProvider struct {
	mu     sync.Mutex
	coords map[string]models.Coordinate
	err    error
	delay  time.Duration
	calls  atomic.Int32
	gate   chan struct{} // when non-nil, lookups block until it is closed
}

func newFakeProvider(coords map[string]models.Coordinate) *fakeProvider {
	return &fakeProvider{coords: coords}
}

func (f *fakeProvider) Name() string      { return "fake" }
func (f *fakeProvider) IsAvailable() bool { return true }

func (f *fakeProvider) Lookup(ctx context.Context, ip string) (models.Coordinate, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return models.Coordinate{}, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.Coordinate{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Coordinate{}, f.err
	}
	c, ok := f.coords[ip]
	if !ok {
		return models.Coordinate{}, ErrMissingCoordinates
	}
	return c, nil
}

func (f *fakeProvider) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// memStore is an in-memory Persister.
type memStore struct {
	mu      sync.Mutex
	entries map[string]models.Coordinate
	saveErr error
}

func (m *memStore) Save(ip string, c models.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.entries == nil {
		m.entries = make(map[string]models.Coordinate)
	}
	m.entries[ip] = c
	return nil
}

func (m *memStore) Get(ip string) (models.Coordinate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.entries[ip]
	if !ok {
		return models.Coordinate{}, fmt.Errorf("get %s: %w", ip, geostore.ErrNotFound)
	}
	return c, nil
}

func (m *memStore) LoadAll(limit int) (map[string]models.Coordinate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Coordinate)
	for ip, c := range m.entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		out[ip] = c
	}
	return out, nil
}
