// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package geo

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/threatfeed/internal/models"
)

var google = models.Coordinate{Lat: 37.4224, Lng: -122.0842}

func newTestResolver(p Provider, opts ...ResolverOption) *Resolver {
	return NewResolver(NewCache(100, 0, nil), p, time.Second, opts...)
}

func TestResolve_LocalAddresses(t *testing.T) {
	p := newFakeProvider(nil)
	r := newTestResolver(p)

	for _, ip := range []string{"", "192.168.1.20", "192.168", "10.0.0.1", "10.255.1.1"} {
		coord, outcome := r.ResolveOutcome(context.Background(), ip)
		if coord != models.DefaultCoordinate {
			t.Errorf("Resolve(%q) = %v, want %v", ip, coord, models.DefaultCoordinate)
		}
		if outcome != OutcomeDefault {
			t.Errorf("Resolve(%q) outcome = %s", ip, outcome)
		}
	}
	if n := p.calls.Load(); n != 0 {
		t.Errorf("provider called %d times for local addresses", n)
	}
	if r.Cache().Len() != 0 {
		t.Errorf("local addresses must not be cached, Len = %d", r.Cache().Len())
	}
}

func TestIsLocal_LiteralPrefix(t *testing.T) {
	tests := map[string]bool{
		"":            true,
		"10.1.2.3":    true,
		"192.168.0.1": true,
		"100.64.0.1":  false, // "10" without the dot
		"172.16.0.1":  false,
		"8.8.8.8":     false,
	}
	for ip, want := range tests {
		if got := IsLocal(ip); got != want {
			t.Errorf("IsLocal(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestResolve_CachesSuccessAndIsIdempotent(t *testing.T) {
	p := newFakeProvider(map[string]models.Coordinate{"8.8.8.8": google})
	r := newTestResolver(p)

	first, o1 := r.ResolveOutcome(context.Background(), "8.8.8.8")
	second, o2 := r.ResolveOutcome(context.Background(), "8.8.8.8")

	if first != google || second != google {
		t.Errorf("got %v and %v, want %v", first, second, google)
	}
	if o1 != OutcomeResolved || o2 != OutcomeCacheHit {
		t.Errorf("outcomes = %s, %s; want resolved, cache_hit", o1, o2)
	}
	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

func TestResolve_FailureFallsBackWithoutCaching(t *testing.T) {
	p := newFakeProvider(nil)
	p.setErr(errors.New("connection refused"))
	r := newTestResolver(p)

	for i := 0; i < 50; i++ {
		coord, outcome := r.ResolveOutcome(context.Background(), "203.0.113.5")
		if outcome != OutcomeFallback {
			t.Fatalf("outcome = %s, want fallback", outcome)
		}
		if coord.Lat < 41.5 || coord.Lat >= 61.5 {
			t.Errorf("fallback lat %v outside [41.5, 61.5)", coord.Lat)
		}
		if coord.Lng < -20.09 || coord.Lng >= 19.91 {
			t.Errorf("fallback lng %v outside [-20.09, 19.91)", coord.Lng)
		}
	}
	if r.Cache().Contains("203.0.113.5") {
		t.Error("failed lookup must not be cached")
	}
	if n := p.calls.Load(); n != 50 {
		t.Errorf("provider called %d times, want 50 (failures retried)", n)
	}
}

func TestResolve_FallbackFormula(t *testing.T) {
	p := newFakeProvider(nil)
	values := []float64{0, 0.999999}
	i := 0
	r := newTestResolver(p, WithRandom(func() float64 {
		v := values[i%len(values)]
		i++
		return v
	}))

	coord := r.Resolve(context.Background(), "198.51.100.1")

	wantLat := 41.5
	wantLng := 19.90996
	if math.Abs(coord.Lat-wantLat) > 1e-9 || math.Abs(coord.Lng-wantLng) > 1e-6 {
		t.Errorf("fallback = %v, want %v,%v", coord, wantLat, wantLng)
	}
}

func TestResolve_Timeout(t *testing.T) {
	p := newFakeProvider(map[string]models.Coordinate{"8.8.8.8": google})
	p.delay = time.Second
	r := NewResolver(NewCache(10, 0, nil), p, 20*time.Millisecond)

	start := time.Now()
	_, outcome := r.ResolveOutcome(context.Background(), "8.8.8.8")
	if outcome != OutcomeFallback {
		t.Errorf("outcome = %s, want fallback", outcome)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timeout not honored, took %v", elapsed)
	}
	if r.Cache().Contains("8.8.8.8") {
		t.Error("timed out lookup must not be cached")
	}
}

func TestResolve_ConcurrentCallersShareOneLookup(t *testing.T) {
	p := newFakeProvider(map[string]models.Coordinate{"8.8.8.8": google})
	p.gate = make(chan struct{})
	r := newTestResolver(p)

	const callers = 20
	results := make([]models.Coordinate, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "8.8.8.8")
		}(i)
	}

	// Let every goroutine reach the in-flight lookup before releasing it.
	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(p.gate)
	wg.Wait()

	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
	for i, c := range results {
		if c != google {
			t.Errorf("caller %d got %v", i, c)
		}
	}
}

func TestResolve_SecondMessageAfterSlowFirstHitsCache(t *testing.T) {
	p := newFakeProvider(map[string]models.Coordinate{"8.8.8.8": google})
	p.delay = 50 * time.Millisecond
	r := newTestResolver(p)

	r.Resolve(context.Background(), "8.8.8.8")
	_, outcome := r.ResolveOutcome(context.Background(), "8.8.8.8")

	if outcome != OutcomeCacheHit {
		t.Errorf("outcome = %s, want cache_hit", outcome)
	}
	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}

func TestResolve_CallerCancellation(t *testing.T) {
	p := newFakeProvider(map[string]models.Coordinate{"8.8.8.8": google})
	p.gate = make(chan struct{})
	defer close(p.gate)
	r := newTestResolver(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() {
		_, o := r.ResolveOutcome(ctx, "8.8.8.8")
		done <- o
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case o := <-done:
		if o != OutcomeFallback {
			t.Errorf("outcome = %s, want fallback", o)
		}
	case <-time.After(time.Second):
		t.Fatal("Resolve did not return after cancellation")
	}
}

func TestResolve_CancelledStarterDoesNotFailJoinedCaller(t *testing.T) {
	p := newFakeProvider(map[string]models.Coordinate{"8.8.8.8": google})
	p.gate = make(chan struct{})
	r := newTestResolver(p)

	ctx, cancel := context.WithCancel(context.Background())
	starter := make(chan Outcome, 1)
	go func() {
		_, o := r.ResolveOutcome(ctx, "8.8.8.8")
		starter <- o
	}()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		coord   models.Coordinate
		outcome Outcome
	}
	joined := make(chan result, 1)
	go func() {
		c, o := r.ResolveOutcome(context.Background(), "8.8.8.8")
		joined <- result{c, o}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case o := <-starter:
		if o != OutcomeFallback {
			t.Errorf("cancelled caller outcome = %s, want fallback", o)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}
	close(p.gate)

	select {
	case res := <-joined:
		if res.outcome == OutcomeFallback || res.coord != google {
			t.Errorf("joined caller got %v (%s), want %v", res.coord, res.outcome, google)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("joined caller did not return")
	}
	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
	if !r.Cache().Contains("8.8.8.8") {
		t.Error("lookup finished after the starter left should still be cached")
	}
}

func TestResolve_UsesStoreBeforeProvider(t *testing.T) {
	p := newFakeProvider(nil)
	store := &memStore{entries: map[string]models.Coordinate{"8.8.8.8": google}}
	r := NewResolver(NewCache(1, 0, nil), p, time.Second)
	r.cache.store = store

	coord, outcome := r.ResolveOutcome(context.Background(), "8.8.8.8")
	if outcome != OutcomeResolved || coord != google {
		t.Errorf("ResolveOutcome = %v, %s; want stored coordinate", coord, outcome)
	}
	if n := p.calls.Load(); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestLocate(t *testing.T) {
	r := newTestResolver(newFakeProvider(nil))
	r.Cache().Put("8.8.8.8", google)

	tests := []struct {
		ip     string
		want   models.Coordinate
		wantOK bool
	}{
		{"8.8.8.8", google, true},
		{"192.168.0.4", models.DefaultCoordinate, true},
		{"", models.DefaultCoordinate, true},
		{"1.1.1.1", models.MapDefaultCoordinate, false},
	}
	for _, tt := range tests {
		got, ok := r.Locate(tt.ip)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Locate(%q) = %v, %v; want %v, %v", tt.ip, got, ok, tt.want, tt.wantOK)
		}
	}
}
