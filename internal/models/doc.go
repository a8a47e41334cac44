// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package models holds the data types shared across threatfeed: the Threat
// record carried on the stream, the Coordinate a source IP resolves to, the
// stream ConnectionState, and the Snapshot published to views.
package models
