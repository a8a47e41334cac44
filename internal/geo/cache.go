// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package geo

import (
	"errors"
	"time"

	"github.com/tomtom215/threatfeed/internal/cache"
	"github.com/tomtom215/threatfeed/internal/geostore"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
)

// Persister is durable storage behind the cache. geostore.Store implements it.
// Get returns an error wrapping geostore.ErrNotFound for unknown addresses.
type Persister interface {
	Save(ip string, c models.Coordinate) error
	Get(ip string) (models.Coordinate, error)
	LoadAll(limit int) (map[string]models.Coordinate, error)
}

// Cache maps IP addresses to resolved coordinates. It holds at most one
// entry per address and at most capacity addresses, evicting the least
// recently used. Safe for concurrent use.
type Cache struct {
	lru   *cache.LRU[models.Coordinate]
	store Persister
}

// NewCache creates a cache of the given capacity. A non-nil store is read
// once to warm the cache and then written through on every Put.
func NewCache(capacity int, ttl time.Duration, store Persister) *Cache {
	c := &Cache{
		lru: cache.NewLRU(capacity,
			cache.WithTTL[models.Coordinate](ttl),
			cache.WithEvictCallback(func(string, models.Coordinate) {
				metrics.GeoCacheEvictions.Inc()
			}),
		),
		store: store,
	}
	if store != nil {
		c.warm(capacity)
	}
	return c
}

func (c *Cache) warm(limit int) {
	entries, err := c.store.LoadAll(limit)
	if err != nil {
		metrics.GeoStoreErrors.WithLabelValues("load").Inc()
		logging.Warn().Err(err).Msg("Failed to warm geolocation cache from store")
		return
	}
	for ip, coord := range entries {
		c.lru.Add(ip, coord)
	}
	metrics.GeoCacheEntries.Set(float64(c.lru.Len()))
	logging.Info().Int("entries", len(entries)).Msg("Geolocation cache warmed from store")
}

// Get returns the cached coordinate for ip.
func (c *Cache) Get(ip string) (models.Coordinate, bool) {
	return c.lru.Get(ip)
}

// Peek returns the cached coordinate for ip without affecting recency or stats.
func (c *Cache) Peek(ip string) (models.Coordinate, bool) {
	return c.lru.Peek(ip)
}

// Load is Peek that falls back to the store for addresses the cache has
// evicted or never warmed. A store hit is cached again.
func (c *Cache) Load(ip string) (models.Coordinate, bool) {
	if coord, ok := c.lru.Peek(ip); ok {
		return coord, true
	}
	if c.store == nil {
		return models.Coordinate{}, false
	}

	coord, err := c.store.Get(ip)
	if err != nil {
		if !errors.Is(err, geostore.ErrNotFound) {
			metrics.GeoStoreErrors.WithLabelValues("get").Inc()
			logging.Warn().Err(err).Str("ip", ip).Msg("Failed to read persisted coordinate")
		}
		return models.Coordinate{}, false
	}
	if !coord.Valid() {
		return models.Coordinate{}, false
	}
	c.lru.Add(ip, coord)
	metrics.GeoCacheEntries.Set(float64(c.lru.Len()))
	return coord, true
}

// Contains reports whether ip is cached without affecting recency.
func (c *Cache) Contains(ip string) bool {
	_, ok := c.lru.Peek(ip)
	return ok
}

// Put stores coord for ip, replacing any previous value.
func (c *Cache) Put(ip string, coord models.Coordinate) {
	c.lru.Add(ip, coord)
	metrics.GeoCacheEntries.Set(float64(c.lru.Len()))

	if c.store == nil {
		return
	}
	if err := c.store.Save(ip, coord); err != nil {
		metrics.GeoStoreErrors.WithLabelValues("save").Inc()
		logging.Warn().Err(err).Str("ip", ip).Msg("Failed to persist coordinate")
	}
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Snapshot copies the cached coordinates of the given addresses. With no
// arguments it copies the whole cache. Addresses not cached are omitted.
func (c *Cache) Snapshot(ips ...string) map[string]models.Coordinate {
	if len(ips) == 0 {
		return c.lru.Entries()
	}
	out := make(map[string]models.Coordinate, len(ips))
	for _, ip := range ips {
		if coord, ok := c.lru.Peek(ip); ok {
			out[ip] = coord
		}
	}
	return out
}

// Stats exposes the underlying LRU counters.
func (c *Cache) Stats() cache.Stats {
	return c.lru.Stats()
}
