// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package geo

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
)

// Fallback area for addresses that could not be resolved: a box of
// FallbackSpan degrees centred on FallbackCenter.
var (
	FallbackCenter = models.Coordinate{Lat: 51.5, Lng: -0.09}
	FallbackSpan   = models.Coordinate{Lat: 20, Lng: 40}
)

// Outcome says how a coordinate was produced.
type Outcome string

const (
	OutcomeDefault  Outcome = "default"   // absent or private address
	OutcomeCacheHit Outcome = "cache_hit" // served from Cache
	OutcomeResolved Outcome = "resolved"  // external lookup succeeded
	OutcomeFallback Outcome = "fallback"  // external lookup failed
)

// IsLocal reports whether ip is absent or carries one of the private
// prefixes that are never looked up. Matching is by literal prefix.
func IsLocal(ip string) bool {
	return ip == "" || strings.HasPrefix(ip, "192.168") || strings.HasPrefix(ip, "10.")
}

// Resolver turns source IPs into coordinates. It never fails; every error
// path ends in a fallback coordinate.
type Resolver struct {
	cache    *Cache
	provider Provider
	timeout  time.Duration
	flights  singleflight.Group
	random   func() float64
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRandom replaces the uniform [0,1) source used for fallback jitter.
func WithRandom(fn func() float64) ResolverOption {
	return func(r *Resolver) { r.random = fn }
}

// NewResolver creates a Resolver. timeout bounds each external lookup; 0
// leaves only the caller's context in charge.
func NewResolver(c *Cache, p Provider, timeout time.Duration, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:    c,
		provider: p,
		timeout:  timeout,
		random:   rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the cache the resolver writes to.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the coordinate for ip.
func (r *Resolver) Resolve(ctx context.Context, ip string) models.Coordinate {
	coord, _ := r.ResolveOutcome(ctx, ip)
	return coord
}

// ResolveOutcome is Resolve that also reports how the coordinate was produced.
func (r *Resolver) ResolveOutcome(ctx context.Context, ip string) (models.Coordinate, Outcome) {
	if IsLocal(ip) {
		metrics.GeoLookups.WithLabelValues(string(OutcomeDefault)).Inc()
		return models.DefaultCoordinate, OutcomeDefault
	}

	if coord, ok := r.cache.Get(ip); ok {
		metrics.GeoLookups.WithLabelValues(string(OutcomeCacheHit)).Inc()
		return coord, OutcomeCacheHit
	}

	coord, err := r.lookup(ctx, ip)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("ip", ip).Str("reason", reason(err)).
			Msg("Geolocation lookup failed, using fallback")
		metrics.GeoLookups.WithLabelValues(string(OutcomeFallback)).Inc()
		return r.fallback(), OutcomeFallback
	}

	metrics.GeoLookups.WithLabelValues(string(OutcomeResolved)).Inc()
	return coord, OutcomeResolved
}

// Locate is the render-time lookup: the deterministic coordinate for local
// addresses, the cached coordinate when there is one, and
// MapDefaultCoordinate otherwise. It never performs I/O.
func (r *Resolver) Locate(ip string) (models.Coordinate, bool) {
	if IsLocal(ip) {
		return models.DefaultCoordinate, true
	}
	if coord, ok := r.cache.Peek(ip); ok {
		return coord, true
	}
	return models.MapDefaultCoordinate, false
}

// lookup performs at most one external request per address at a time.
// Callers arriving while a request is in flight wait for its result.
func (r *Resolver) lookup(ctx context.Context, ip string) (models.Coordinate, error) {
	ch := r.flights.DoChan(ip, func() (interface{}, error) {
		// A flight that finished just before this one started has
		// already filled the cache. The store may know addresses the
		// cache has evicted.
		if coord, ok := r.cache.Load(ip); ok {
			return coord, nil
		}

		// The flight is shared, so it must outlive the caller that
		// started it. Each waiter still honours its own ctx below.
		lctx := context.WithoutCancel(ctx)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(lctx, r.timeout)
			defer cancel()
		}

		start := time.Now()
		coord, err := r.provider.Lookup(lctx, ip)
		metrics.RecordGeoLookup(time.Since(start), reason(err))
		if err != nil {
			return nil, err
		}
		r.cache.Put(ip, coord)
		return coord, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.GeoInflightShared.Inc()
		}
		if res.Err != nil {
			return models.Coordinate{}, res.Err
		}
		return res.Val.(models.Coordinate), nil
	case <-ctx.Done():
		return models.Coordinate{}, ctx.Err()
	}
}

func (r *Resolver) fallback() models.Coordinate {
	return models.Coordinate{
		Lat: FallbackCenter.Lat + (r.random()-0.5)*FallbackSpan.Lat,
		Lng: FallbackCenter.Lng + (r.random()-0.5)*FallbackSpan.Lng,
	}
}
