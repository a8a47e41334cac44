// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if err := c.validateStream(); err != nil {
		return err
	}
	if err := c.validateGeoIP(); err != nil {
		return err
	}
	if c.Buffer.Capacity < 1 {
		return fmt.Errorf("BUFFER_CAPACITY must be at least 1, got %d", c.Buffer.Capacity)
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStream() error {
	if err := validateURL(c.Stream.URL, "STREAM_URL", "ws", "wss"); err != nil {
		return err
	}
	if c.Stream.HandshakeTimeout <= 0 {
		return fmt.Errorf("STREAM_HANDSHAKE_TIMEOUT must be positive")
	}
	if c.Stream.PingInterval <= 0 || c.Stream.ReadTimeout <= c.Stream.PingInterval {
		return fmt.Errorf("STREAM_READ_TIMEOUT (%s) must exceed STREAM_PING_INTERVAL (%s)",
			c.Stream.ReadTimeout, c.Stream.PingInterval)
	}
	if c.Stream.ReconnectInitial <= 0 || c.Stream.ReconnectMax < c.Stream.ReconnectInitial {
		return fmt.Errorf("STREAM_RECONNECT_MAX (%s) must be at least STREAM_RECONNECT_INITIAL (%s) and both positive",
			c.Stream.ReconnectMax, c.Stream.ReconnectInitial)
	}
	if c.Stream.ReconnectJitter < 0 || c.Stream.ReconnectJitter > 1 {
		return fmt.Errorf("STREAM_RECONNECT_JITTER must be between 0 and 1, got %v", c.Stream.ReconnectJitter)
	}
	if c.Stream.MaxRetries < 0 {
		return fmt.Errorf("STREAM_MAX_RETRIES must be >= 0, got %d", c.Stream.MaxRetries)
	}
	return nil
}

func (c *Config) validateGeoIP() error {
	if err := validateURL(c.GeoIP.URL, "GEOIP_URL", "http", "https"); err != nil {
		return err
	}
	if c.GeoIP.Timeout <= 0 {
		return fmt.Errorf("GEOIP_TIMEOUT must be positive")
	}
	if c.GeoIP.CacheSize < 1 {
		return fmt.Errorf("GEOIP_CACHE_SIZE must be at least 1, got %d", c.GeoIP.CacheSize)
	}
	if c.GeoIP.CacheTTL < 0 {
		return fmt.Errorf("GEOIP_CACHE_TTL must not be negative")
	}
	if c.GeoIP.RateLimit < 0 {
		return fmt.Errorf("GEOIP_RATE_LIMIT must not be negative")
	}
	if c.GeoIP.RateLimit > 0 && c.GeoIP.RateBurst < 1 {
		return fmt.Errorf("GEOIP_RATE_BURST must be at least 1 when GEOIP_RATE_LIMIT is set")
	}
	if c.GeoIP.BreakerFailureRatio <= 0 || c.GeoIP.BreakerFailureRatio > 1 {
		return fmt.Errorf("GEOIP_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.GeoIP.BreakerFailureRatio)
	}
	if c.GeoIP.BreakerTimeout <= 0 {
		return fmt.Errorf("GEOIP_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// HasWildcardCORS reports whether any origin is allowed.
func (c *Config) HasWildcardCORS() bool {
	for _, o := range c.Security.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func validateURL(raw, name string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", name, err)
	}
	ok := false
	for _, s := range schemes {
		if u.Scheme == s {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%s scheme must be one of %s, got %q", name, strings.Join(schemes, ", "), u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s host is required", name)
	}
	return nil
}
