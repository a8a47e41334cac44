// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package logging is the zerolog-backed structured logger shared by every
// threatfeed component.
//
// A global logger is configured once from main via Init and read everywhere
// else through the level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("endpoint", url).Msg("Stream connected")
//	logging.Warn().Err(err).Str("ip", ip).Msg("Geolocation lookup failed")
//
// Component loggers carry a fixed "component" field:
//
//	log := logging.WithComponent("stream")
//
// Context helpers attach correlation and request IDs (google/uuid) so the
// HTTP API and the stream consumer can tie related log lines together:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Debug().Msg("Resolving source IP")
//
// SlogHandler adapts the global logger to log/slog for libraries that only
// accept an *slog.Logger, most notably sutureslog in the supervisor tree.
//
// # Environment
//
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
package logging
