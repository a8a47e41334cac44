// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package stream consumes the live threat feed.

A Consumer holds one WebSocket connection to the feed endpoint, decodes every
message into a models.Threat and hands it to a Handler on the read goroutine,
so threats reach the Handler in arrival order. Messages that fail to decode
are logged, counted and dropped without closing the connection.

When the connection is lost the Consumer reconnects with exponential backoff
and jitter. Connection state changes are reported through OnStateChange:

	connecting -> open -> reconnecting -> open -> ... -> closed

Run blocks until its context is cancelled or MaxRetries consecutive dials
have failed.
*/
package stream
