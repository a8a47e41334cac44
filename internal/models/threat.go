// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package models

import "time"

// Threat is a single security event reported by a sensor node and relayed
// over the threat stream. Hash is the globally unique key a view uses to
// identify a row.
//
// Example stream payload:
//
//	{
//	  "hash": "9f86d081884c7d659a2feaa0c55ad015",
//	  "type": "port_scan",
//	  "confidence": 87,
//	  "source_ip": "203.0.113.7",
//	  "dest_ip": null,
//	  "timestamp": 1718000000,
//	  "node_id": "sensor-eu-1"
//	}
type Threat struct {
	Hash       string  `json:"hash"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	SourceIP   string  `json:"source_ip,omitempty"`
	DestIP     string  `json:"dest_ip,omitempty"`
	Timestamp  int64   `json:"timestamp"`
	NodeID     string  `json:"node_id"`
}

// HasSourceIP reports whether the threat carries a source address to geolocate.
func (t *Threat) HasSourceIP() bool {
	return t.SourceIP != ""
}

// ObservedAt converts the Unix-seconds timestamp to a time.Time in UTC.
func (t *Threat) ObservedAt() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}
