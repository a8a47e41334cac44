// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package models

import "time"

// Snapshot is the view payload published after every admitted threat.
//
// Threats is ordered oldest first. Locations holds the resolved coordinate
// of every source IP in Threats that has one; a view falls back to
// MapDefaultCoordinate for the rest.
type Snapshot struct {
	Threats     []Threat              `json:"threats"`
	Locations   map[string]Coordinate `json:"locations"`
	State       ConnectionState       `json:"state"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Locate returns the coordinate for ip, or MapDefaultCoordinate.
func (s *Snapshot) Locate(ip string) Coordinate {
	if c, ok := s.Locations[ip]; ok {
		return c
	}
	return MapDefaultCoordinate
}
