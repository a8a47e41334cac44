// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/threatfeed/internal/api"
	"github.com/tomtom215/threatfeed/internal/buffer"
	"github.com/tomtom215/threatfeed/internal/config"
	"github.com/tomtom215/threatfeed/internal/geo"
	"github.com/tomtom215/threatfeed/internal/geostore"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/pipeline"
	"github.com/tomtom215/threatfeed/internal/stream"
	"github.com/tomtom215/threatfeed/internal/supervisor"
	"github.com/tomtom215/threatfeed/internal/supervisor/services"
	ws "github.com/tomtom215/threatfeed/internal/websocket"
)

// app owns every long-lived component. Nothing is global.
type app struct {
	cfg      *config.Config
	store    *geostore.Store
	guard    *geo.Guard
	resolver *geo.Resolver
	pipe     *pipeline.Pipeline
	hub      *ws.Hub
	consumer *stream.Consumer
	server   *http.Server
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	// A nil *geostore.Store must not reach the cache as a non-nil interface.
	var persister geo.Persister
	if cfg.GeoIP.PersistPath != "" {
		store, err := geostore.Open(cfg.GeoIP.PersistPath, cfg.GeoIP.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("open geo store: %w", err)
		}
		a.store = store
		persister = store
		logging.Info().Str("path", cfg.GeoIP.PersistPath).Msg("Geo store opened")
	}

	geoCache := geo.NewCache(cfg.GeoIP.CacheSize, cfg.GeoIP.CacheTTL, persister)

	provider := geo.NewIPGeolocationProvider(cfg.GeoIP.URL, cfg.GeoIP.APIKey)
	if cfg.GeoIP.APIKey == "" {
		logging.Warn().Str("provider", provider.Name()).
			Msg("GEOIP_API_KEY not set, lookups will be rejected and threats placed at fallback coordinates")
	}
	a.guard = geo.NewGuard(provider, geo.GuardConfig{
		RateLimit:    cfg.GeoIP.RateLimit,
		RateBurst:    cfg.GeoIP.RateBurst,
		MinRequests:  cfg.GeoIP.BreakerMinRequests,
		FailureRatio: cfg.GeoIP.BreakerFailureRatio,
		Interval:     cfg.GeoIP.BreakerInterval,
		Timeout:      cfg.GeoIP.BreakerTimeout,
		MaxHalfOpen:  geo.DefaultGuardConfig().MaxHalfOpen,
	})
	a.resolver = geo.NewResolver(geoCache, a.guard, cfg.GeoIP.Timeout)

	a.hub = ws.NewHub()
	a.pipe = pipeline.New(a.resolver, buffer.New(cfg.Buffer.Capacity), a.hub)
	a.hub.SetSnapshotSource(a.pipe.Snapshot)

	a.consumer = stream.New(stream.Config{
		URL:              cfg.Stream.URL,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		ReadTimeout:      cfg.Stream.ReadTimeout,
		PingInterval:     cfg.Stream.PingInterval,
		ReconnectInitial: cfg.Stream.ReconnectInitial,
		ReconnectMax:     cfg.Stream.ReconnectMax,
		ReconnectJitter:  cfg.Stream.ReconnectJitter,
		MaxRetries:       cfg.Stream.MaxRetries,
	}, a.pipe)
	a.consumer.OnStateChange(a.pipe.SetState)

	handler := api.NewHandler(a.pipe, a.hub, a.consumer.Endpoint(), cfg.Security.CORSOrigins)
	handler.SetBreaker(a.guard)
	mw := api.NewChiMiddlewareFromSecurity(
		cfg.Security.CORSOrigins,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
	)

	a.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, mw).SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// tree builds the supervisor tree for a.
func (a *app) tree() (*supervisor.SupervisorTree, error) {
	cfg := supervisor.DefaultTreeConfig()
	cfg.ShutdownTimeout = a.cfg.Server.ShutdownTimeout + time.Second

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg)
	if err != nil {
		return nil, err
	}
	tree.AddIngestService(services.NewStreamService(a.consumer))
	tree.AddViewService(services.NewHubService(a.hub))
	tree.AddAPIService(services.NewHTTPService(a.server, a.cfg.Server.ShutdownTimeout))
	return tree, nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing geo store")
	}
}
