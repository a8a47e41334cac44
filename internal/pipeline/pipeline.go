// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package pipeline wires decoded threats through geolocation into the
// threat buffer and publishes the result to the view.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/threatfeed/internal/buffer"
	"github.com/tomtom215/threatfeed/internal/geo"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
)

// View receives pipeline output. Implementations must not block.
type View interface {
	PublishSnapshot(snap *models.Snapshot)
	PublishState(state models.ConnectionState)
}

// Pipeline owns the resolve, append and notify step for each threat.
type Pipeline struct {
	resolver *geo.Resolver
	buffer   *buffer.ThreatBuffer

	mu    sync.RWMutex
	view  View
	state models.ConnectionState
}

// New creates a Pipeline. view may be nil and set later with SetView.
func New(resolver *geo.Resolver, buf *buffer.ThreatBuffer, view View) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		buffer:   buf,
		view:     view,
		state:    models.StateClosed,
	}
}

// SetView replaces the view.
func (p *Pipeline) SetView(v View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view = v
}

// Handle admits one threat. An uncached source address is resolved first
// and Handle waits for it, so the coordinate is in the cache before the
// view sees the threat. The threat is appended whatever the resolution
// outcome.
func (p *Pipeline) Handle(ctx context.Context, t models.Threat) {
	start := time.Now()

	if t.HasSourceIP() && !p.resolver.Cache().Contains(t.SourceIP) {
		_, outcome := p.resolver.ResolveOutcome(ctx, t.SourceIP)
		logging.Ctx(ctx).Trace().Str("hash", t.Hash).Str("ip", t.SourceIP).
			Time("observed_at", t.ObservedAt()).Str("outcome", string(outcome)).
			Msg("Resolved threat source")
	}

	p.buffer.Append(t)

	if v := p.currentView(); v != nil {
		v.PublishSnapshot(p.Snapshot())
	}
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
}

// Snapshot returns the buffered threats, oldest first, with the known
// coordinate of each source address.
func (p *Pipeline) Snapshot() *models.Snapshot {
	snap, _ := p.SnapshotLatest(0)
	return snap
}

// SnapshotLatest is Snapshot restricted to the newest n threats, still
// oldest first. It also returns the number of buffered threats. n <= 0
// means all of them.
func (p *Pipeline) SnapshotLatest(n int) (*models.Snapshot, int) {
	threats, total := p.buffer.Latest(n)
	locations := make(map[string]models.Coordinate, len(threats))
	for i := range threats {
		ip := threats[i].SourceIP
		if !threats[i].HasSourceIP() {
			continue
		}
		if _, seen := locations[ip]; seen {
			continue
		}
		if c, ok := p.resolver.Locate(ip); ok {
			locations[ip] = c
		}
	}

	return &models.Snapshot{
		Threats:     threats,
		Locations:   locations,
		State:       p.State(),
		GeneratedAt: time.Now().UTC(),
	}, total
}

// Locate is the render-time coordinate lookup for ip.
func (p *Pipeline) Locate(ip string) (models.Coordinate, bool) {
	return p.resolver.Locate(ip)
}

// SetState records the stream connection state and forwards it to the view.
func (p *Pipeline) SetState(s models.ConnectionState) {
	p.mu.Lock()
	p.state = s
	v := p.view
	p.mu.Unlock()

	if v != nil {
		v.PublishState(s)
	}
}

// State returns the last recorded stream connection state.
func (p *Pipeline) State() models.ConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Buffer returns the threat buffer.
func (p *Pipeline) Buffer() *buffer.ThreatBuffer { return p.buffer }

// Resolver returns the geolocation resolver.
func (p *Pipeline) Resolver() *geo.Resolver { return p.resolver }

func (p *Pipeline) currentView() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}
