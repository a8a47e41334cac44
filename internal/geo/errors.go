// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package geo

import (
	"context"
	"errors"
	"fmt"
	"net"

	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	// ErrMissingCoordinates means the service answered without usable latitude/longitude.
	ErrMissingCoordinates = errors.New("response has no coordinates")

	// ErrInvalidCoordinates means the coordinates were outside geographic bounds.
	ErrInvalidCoordinates = errors.New("coordinates out of range")

	// ErrRateLimited means the local token bucket refused the lookup.
	ErrRateLimited = errors.New("geolocation rate limit exceeded")

	// ErrProviderUnavailable means the provider is not configured.
	ErrProviderUnavailable = errors.New("geolocation provider unavailable")
)

// StatusError is a non-200 answer from the geolocation service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("geolocation service returned status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("geolocation service returned status %d", e.Code)
}

// DecodeError wraps a malformed response body.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode geolocation response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// reason maps a lookup error to a short metric label.
func reason(err error) string {
	var statusErr *StatusError
	var decodeErr *DecodeError
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMissingCoordinates), errors.Is(err, ErrInvalidCoordinates):
		return "coordinates"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "transport"
	}
}
