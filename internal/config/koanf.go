// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/threatfeed/config.yaml",
	"/etc/threatfeed/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			URL:              "ws://localhost:8000/ws",
			HandshakeTimeout: 10 * time.Second,
			ReadTimeout:      60 * time.Second,
			PingInterval:     30 * time.Second,
			ReconnectInitial: time.Second,
			ReconnectMax:     30 * time.Second,
			ReconnectJitter:  0.2,
			MaxRetries:       0,
		},
		GeoIP: GeoIPConfig{
			URL:                 "https://api.ipgeolocation.io/ipgeo",
			APIKey:              "",
			Timeout:             5 * time.Second,
			CacheSize:           10000,
			CacheTTL:            0,
			RateLimit:           10,
			RateBurst:           20,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			PersistPath:         "",
		},
		Buffer: BufferConfig{
			Capacity: 51, // the last 50 plus the newest
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf layers defaults, the config file and environment variables
// (ENV > file > defaults), unmarshals the result and validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"stream_url":               "stream.url",
	"stream_handshake_timeout": "stream.handshake_timeout",
	"stream_read_timeout":      "stream.read_timeout",
	"stream_ping_interval":     "stream.ping_interval",
	"stream_reconnect_initial": "stream.reconnect_initial",
	"stream_reconnect_max":     "stream.reconnect_max",
	"stream_reconnect_jitter":  "stream.reconnect_jitter",
	"stream_max_retries":       "stream.max_retries",

	"geoip_url":                   "geoip.url",
	"geoip_api_key":               "geoip.api_key",
	"geoip_timeout":               "geoip.timeout",
	"geoip_cache_size":            "geoip.cache_size",
	"geoip_cache_ttl":             "geoip.cache_ttl",
	"geoip_rate_limit":            "geoip.rate_limit",
	"geoip_rate_burst":            "geoip.rate_burst",
	"geoip_breaker_min_requests":  "geoip.breaker_min_requests",
	"geoip_breaker_failure_ratio": "geoip.breaker_failure_ratio",
	"geoip_breaker_interval":      "geoip.breaker_interval",
	"geoip_breaker_timeout":       "geoip.breaker_timeout",
	"geoip_persist_path":          "geoip.persist_path",

	"buffer_capacity": "buffer.capacity",

	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
