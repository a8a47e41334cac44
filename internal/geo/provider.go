// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package geo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatfeed/internal/models"
)

// Provider looks up the coordinate of a public IP address.
type Provider interface {
	// Lookup returns the coordinate for ip or an error. It must honor ctx.
	Lookup(ctx context.Context, ip string) (models.Coordinate, error)

	// Name identifies the provider in logs and metrics.
	Name() string

	// IsAvailable reports whether the provider is configured.
	IsAvailable() bool
}

// IPGeolocationProvider queries the ipgeolocation.io "ipgeo" endpoint:
//
//	GET https://api.ipgeolocation.io/ipgeo?apiKey=KEY&ip=IP
//
// The service returns latitude and longitude as strings ("37.42240"); plain
// JSON numbers are accepted too.
type IPGeolocationProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewIPGeolocationProvider creates a provider for baseURL. The http.Client
// timeout is a backstop; callers bound each lookup through ctx.
func NewIPGeolocationProvider(baseURL, apiKey string) *IPGeolocationProvider {
	return &IPGeolocationProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name implements Provider.
func (p *IPGeolocationProvider) Name() string {
	return "ipgeolocation.io"
}

// IsAvailable implements Provider. A missing API key still lets the request
// go out; the service rejects it and the caller falls back.
func (p *IPGeolocationProvider) IsAvailable() bool {
	return p.baseURL != ""
}

// ipgeoResponse holds the fields read from the response; everything else is ignored.
type ipgeoResponse struct {
	Latitude  flexFloat `json:"latitude"`
	Longitude flexFloat `json:"longitude"`
	Message   string    `json:"message"`
}

// Lookup implements Provider.
func (p *IPGeolocationProvider) Lookup(ctx context.Context, ip string) (models.Coordinate, error) {
	if !p.IsAvailable() {
		return models.Coordinate{}, ErrProviderUnavailable
	}

	result, err := p.query(ctx, ip)
	if err != nil {
		return models.Coordinate{}, err
	}

	if !result.Latitude.set || !result.Longitude.set {
		return models.Coordinate{}, ErrMissingCoordinates
	}
	coord := models.Coordinate{Lat: result.Latitude.v, Lng: result.Longitude.v}
	if !coord.Valid() {
		return models.Coordinate{}, fmt.Errorf("%w: %s", ErrInvalidCoordinates, coord)
	}
	return coord, nil
}

func (p *IPGeolocationProvider) query(ctx context.Context, ip string) (*ipgeoResponse, error) {
	q := url.Values{}
	q.Set("apiKey", p.apiKey)
	q.Set("ip", ip)
	reqURL := p.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", p.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", p.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody ipgeoResponse
		_ = json.Unmarshal(body, &errBody)
		return nil, &StatusError{Code: resp.StatusCode, Message: errBody.Message}
	}

	var result ipgeoResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&result); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &result, nil
}

// flexFloat decodes a JSON number or a string holding a number. null and
// absent leave it unset.
type flexFloat struct {
	v   float64
	set bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	raw := data
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		raw = []byte(s)
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", data)
	}
	f.v, f.set = v, true
	return nil
}
