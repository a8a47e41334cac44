// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package geo resolves threat source addresses to map coordinates.
//
// Resolution order for an address:
//
//  1. Absent, or a literal "192.168" / "10." prefix: DefaultCoordinate. No
//     cache access, no network.
//  2. Cache hit: the cached coordinate.
//  3. Cache miss: one external lookup per address at a time (callers asking
//     for the same address while a lookup is in flight share its result),
//     bounded by a timeout. Success is cached.
//  4. Any failure: a random coordinate around a fixed center. Failures are
//     never cached, so the address is retried on its next appearance.
//
// The external lookup goes through Guard, which applies a token bucket
// (golang.org/x/time/rate) and a circuit breaker (sony/gobreaker) in front
// of the ipgeolocation.io client.
package geo
