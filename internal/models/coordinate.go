// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package models

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
//
// It serializes as a two element array, [lat, lng], which is the shape map
// widgets take for marker positions.
type Coordinate struct {
	Lat float64
	Lng float64
}

var (
	// DefaultCoordinate is used for threats without a source IP and for
	// private addresses. It points at London.
	DefaultCoordinate = Coordinate{Lat: 51.5, Lng: -0.09}

	// MapDefaultCoordinate is where a view places a marker whose IP has no
	// resolved coordinate yet.
	MapDefaultCoordinate = Coordinate{Lat: 20, Lng: 0}
)

// Valid reports whether the coordinate lies within geographic bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(c.Lng, 'f', 4, 64)
}

// MarshalJSON encodes the coordinate as [lat, lng].
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lng})
}

// UnmarshalJSON decodes a [lat, lng] array.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("coordinate must be a [lat, lng] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("coordinate must have 2 elements, got %d", len(pair))
	}
	c.Lat, c.Lng = pair[0], pair[1]
	return nil
}
