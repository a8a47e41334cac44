// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package config loads threatfeed configuration with Koanf v2.
//
// Sources are layered, later ones winning:
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/threatfeed/config.yaml)
//  3. Environment variables (see envMappings)
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
package config

import (
	"fmt"
	"time"
)

// Config is the complete application configuration.
type Config struct {
	Stream   StreamConfig   `koanf:"stream"`
	GeoIP    GeoIPConfig    `koanf:"geoip"`
	Buffer   BufferConfig   `koanf:"buffer"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// StreamConfig controls the inbound threat stream connection.
type StreamConfig struct {
	// URL is the ws:// or wss:// endpoint that pushes threat records.
	URL string `koanf:"url"`

	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`

	// ReadTimeout is how long the connection may stay silent (no message,
	// no pong) before it is considered dead.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	PingInterval time.Duration `koanf:"ping_interval"`

	// Reconnect backoff: ReconnectInitial doubles after every failed dial
	// up to ReconnectMax, each delay randomized by +/- ReconnectJitter.
	ReconnectInitial time.Duration `koanf:"reconnect_initial"`
	ReconnectMax     time.Duration `koanf:"reconnect_max"`
	ReconnectJitter  float64       `koanf:"reconnect_jitter"`

	// MaxRetries caps consecutive failed dials. 0 retries forever.
	MaxRetries int `koanf:"max_retries"`
}

// GeoIPConfig controls source IP geolocation.
type GeoIPConfig struct {
	// URL of the ipgeolocation.io compatible endpoint.
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`

	// Timeout bounds one external lookup.
	Timeout time.Duration `koanf:"timeout"`

	// CacheSize is the LRU capacity in addresses.
	CacheSize int `koanf:"cache_size"`

	// CacheTTL expires cached coordinates. 0 keeps them until evicted.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// RateLimit is the sustained lookups per second sent upstream; RateBurst
	// the bucket size. A RateLimit of 0 disables client-side limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// Circuit breaker around the upstream service.
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`

	// PersistPath enables the on-disk coordinate store when non-empty.
	PersistPath string `koanf:"persist_path"`
}

// BufferConfig controls the display window.
type BufferConfig struct {
	// Capacity is the number of most recent threats kept.
	Capacity int `koanf:"capacity"`
}

// ServerConfig controls the HTTP view surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds CORS and rate limiting for the HTTP API.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
