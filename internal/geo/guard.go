// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package geo

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
)

// GuardConfig configures the rate limiter and circuit breaker.
type GuardConfig struct {
	// RateLimit is lookups per second. 0 disables limiting.
	RateLimit float64
	RateBurst int

	// The breaker opens once at least MinRequests were seen in the current
	// Interval and the failure ratio reaches FailureRatio. It stays open
	// for Timeout, then lets MaxHalfOpen probes through.
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	Timeout      time.Duration
	MaxHalfOpen  uint32
}

// DefaultGuardConfig matches the shipped configuration defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RateLimit:    10,
		RateBurst:    20,
		MinRequests:  10,
		FailureRatio: 0.6,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MaxHalfOpen:  3,
	}
}

// Guard protects a Provider with a token bucket and a circuit breaker.
// Rejections fail fast so the caller can fall back without waiting.
type Guard struct {
	next    Provider
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[models.Coordinate]
	name    string
}

// NewGuard wraps next.
func NewGuard(next Provider, cfg GuardConfig) *Guard {
	name := "geoip-" + next.Name()

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	if cfg.MaxHalfOpen == 0 {
		cfg.MaxHalfOpen = 1
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[models.Coordinate](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxHalfOpen,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("Opening geolocation circuit")
				return true
			}
			return false
		},
		// Per-address answers and caller cancellation say nothing about
		// the health of the service.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrMissingCoordinates) ||
				errors.Is(err, ErrInvalidCoordinates) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Geolocation circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Guard{next: next, limiter: limiter, cb: cb, name: name}
}

// Name implements Provider.
func (g *Guard) Name() string { return g.next.Name() }

// IsAvailable implements Provider.
func (g *Guard) IsAvailable() bool { return g.next.IsAvailable() }

// State returns the breaker state as "closed", "half-open" or "open".
func (g *Guard) State() string { return g.cb.State().String() }

// Lookup implements Provider.
func (g *Guard) Lookup(ctx context.Context, ip string) (models.Coordinate, error) {
	if g.limiter != nil && !g.limiter.Allow() {
		return models.Coordinate{}, ErrRateLimited
	}

	coord, err := g.cb.Execute(func() (models.Coordinate, error) {
		return g.next.Lookup(ctx, ip)
	})
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(g.name, "failure").Inc()
	}
	return coord, err
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
