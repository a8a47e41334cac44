// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatfeed/internal/buffer"
	"github.com/tomtom215/threatfeed/internal/geo"
	"github.com/tomtom215/threatfeed/internal/models"
	"github.com/tomtom215/threatfeed/internal/pipeline"
	ws "github.com/tomtom215/threatfeed/internal/websocket"
)

type noProvider struct{}

func (noProvider) Name() string      { return "none" }
func (noProvider) IsAvailable() bool { return false }
func (noProvider) Lookup(context.Context, string) (models.Coordinate, error) {
	return models.Coordinate{}, geo.ErrProviderUnavailable
}

type fixedBreaker string

func (b fixedBreaker) State() string { return string(b) }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

var paris = models.Coordinate{Lat: 48.85, Lng: 2.35}

func newTestServer(t *testing.T, mw *ChiMiddleware) (*httptest.Server, *pipeline.Pipeline, *ws.Hub) {
	t.Helper()
	resolver := geo.NewResolver(geo.NewCache(100, 0, nil), noProvider{}, time.Second)
	pipe := pipeline.New(resolver, buffer.New(5), nil)
	hub := ws.NewHub()
	hub.SetSnapshotSource(pipe.Snapshot)
	pipe.SetView(hub)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()

	h := NewHandler(pipe, hub, "ws://feed.test/ws", []string{"http://dashboard.test"})
	h.SetBreaker(fixedBreaker("closed"))
	if mw == nil {
		mw = NewChiMiddlewareFromSecurity([]string{"http://dashboard.test"}, 1000, time.Minute, false)
	}
	srv := httptest.NewServer(NewRouter(h, mw).SetupChi())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, pipe, hub
}

func get(t *testing.T, url string) (*http.Response, envelope) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp, env
}

func seed(pipe *pipeline.Pipeline, hashes ...string) {
	pipe.Resolver().Cache().Put("203.0.113.1", paris)
	for i, h := range hashes {
		pipe.Handle(context.Background(), models.Threat{
			Hash: h, Type: "scan", Confidence: float64(10 * i), SourceIP: "203.0.113.1",
			Timestamp: 1718000000 + int64(i), NodeID: "n1",
		})
	}
}

func TestThreats_ReturnsBufferInOrder(t *testing.T) {
	srv, pipe, _ := newTestServer(t, nil)
	seed(pipe, "a", "b", "c")

	resp, env := get(t, srv.URL+"/api/v1/threats")
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, success = %v", resp.StatusCode, env.Success)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatal(err)
	}
	var hashes []string
	for _, th := range snap.Threats {
		hashes = append(hashes, th.Hash)
	}
	if strings.Join(hashes, ",") != "a,b,c" {
		t.Errorf("threats = %v, want a,b,c", hashes)
	}
	if snap.Locations["203.0.113.1"] != paris {
		t.Errorf("locations = %v", snap.Locations)
	}
	if env.Meta == nil || env.Meta.RequestID == "" || env.Meta.Pagination == nil || env.Meta.Pagination.Total != 3 {
		t.Errorf("meta = %+v", env.Meta)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
}

func TestThreats_Limit(t *testing.T) {
	srv, pipe, _ := newTestServer(t, nil)
	seed(pipe, "a", "b", "c", "d")

	_, env := get(t, srv.URL+"/api/v1/threats?limit=2")
	var snap models.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Threats) != 2 || snap.Threats[0].Hash != "c" || snap.Threats[1].Hash != "d" {
		t.Errorf("threats = %+v", snap.Threats)
	}
	if !env.Meta.Pagination.HasMore || env.Meta.Pagination.Count != 2 {
		t.Errorf("pagination = %+v", env.Meta.Pagination)
	}

	for _, bad := range []string{"abc", "-1", "100000"} {
		resp, env := get(t, srv.URL+"/api/v1/threats?limit="+bad)
		if resp.StatusCode != http.StatusBadRequest || env.Success || env.Error == nil {
			t.Errorf("limit=%s: status %d, error %+v", bad, resp.StatusCode, env.Error)
		}
	}
}

func TestLocation(t *testing.T) {
	srv, pipe, _ := newTestServer(t, nil)
	pipe.Resolver().Cache().Put("203.0.113.1", paris)

	tests := []struct {
		ip     string
		status int
		coord  models.Coordinate
		cached bool
	}{
		{"203.0.113.1", http.StatusOK, paris, true},
		{"192.168.1.1", http.StatusOK, models.DefaultCoordinate, true},
		{"198.51.100.9", http.StatusOK, models.MapDefaultCoordinate, false},
		{"not-an-ip", http.StatusBadRequest, models.Coordinate{}, false},
	}
	for _, tt := range tests {
		resp, env := get(t, srv.URL+"/api/v1/locations/"+tt.ip)
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.ip, resp.StatusCode, tt.status)
			continue
		}
		if tt.status != http.StatusOK {
			continue
		}
		var loc models.LocationResponse
		if err := json.Unmarshal(env.Data, &loc); err != nil {
			t.Fatal(err)
		}
		if loc.Coordinate != tt.coord || loc.Cached != tt.cached || loc.IP != tt.ip {
			t.Errorf("%s: got %+v", tt.ip, loc)
		}
	}
}

func TestStatus(t *testing.T) {
	srv, pipe, _ := newTestServer(t, nil)
	seed(pipe, "a", "b")
	pipe.SetState(models.StateOpen)
	pipe.Resolver().Resolve(context.Background(), "203.0.113.1")
	pipe.Resolver().Resolve(context.Background(), "198.51.100.7")

	_, env := get(t, srv.URL+"/api/v1/status")
	var st models.StatusResponse
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.State != models.StateOpen || st.BufferedThreats != 2 || st.BufferCapacity != 5 {
		t.Errorf("status = %+v", st)
	}
	if st.CachedLocations != 1 || st.BreakerState != "closed" || st.Endpoint != "ws://feed.test/ws" {
		t.Errorf("status = %+v", st)
	}
	if st.CacheCapacity != 100 || st.CacheHits != 1 || st.CacheMisses != 1 {
		t.Errorf("cache stats = cap %d, hits %d, misses %d", st.CacheCapacity, st.CacheHits, st.CacheMisses)
	}
}

func TestHealth(t *testing.T) {
	srv, pipe, _ := newTestServer(t, nil)

	if resp, _ := get(t, srv.URL+"/api/v1/health/live"); resp.StatusCode != http.StatusOK {
		t.Errorf("live = %d", resp.StatusCode)
	}

	resp, env := get(t, srv.URL+"/api/v1/health/ready")
	if resp.StatusCode != http.StatusServiceUnavailable || env.Success {
		t.Errorf("ready before open = %d", resp.StatusCode)
	}

	pipe.SetState(models.StateOpen)
	resp, env = get(t, srv.URL+"/api/v1/health/ready")
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Errorf("ready after open = %d", resp.StatusCode)
	}
	var hs models.HealthStatus
	if err := json.Unmarshal(env.Data, &hs); err != nil {
		t.Fatal(err)
	}
	if hs.Stream != "open" {
		t.Errorf("stream = %q", hs.Stream)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp, env := get(t, srv.URL+"/api/v1/nope")
	if resp.StatusCode != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("404: %d %+v", resp.StatusCode, env.Error)
	}

	r, err := http.Post(srv.URL+"/api/v1/threats", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /threats = %d", r.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	mw := NewChiMiddlewareFromSecurity([]string{"*"}, 2, time.Minute, false)
	srv, _, _ := newTestServer(t, mw)

	for i := 0; i < 2; i++ {
		if resp, _ := get(t, srv.URL+"/api/v1/status"); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d = %d", i, resp.StatusCode)
		}
	}
	resp, env := get(t, srv.URL+"/api/v1/status")
	if resp.StatusCode != http.StatusTooManyRequests || env.Error == nil || env.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("third request = %d %+v", resp.StatusCode, env.Error)
	}

	// Probes are exempt.
	if resp, _ := get(t, srv.URL+"/api/v1/health/live"); resp.StatusCode != http.StatusOK {
		t.Errorf("live under rate limit = %d", resp.StatusCode)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	mw := NewChiMiddlewareFromSecurity([]string{"*"}, 1, time.Minute, true)
	srv, _, _ := newTestServer(t, mw)

	for i := 0; i < 3; i++ {
		if resp, _ := get(t, srv.URL+"/api/v1/status"); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d = %d", i, resp.StatusCode)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/threats", nil)
	req.Header.Set("Origin", "http://dashboard.test")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://dashboard.test" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	get(t, srv.URL+"/api/v1/status")

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics = %d", resp.StatusCode)
	}
}

func TestWebSocket(t *testing.T) {
	srv, pipe, hub := newTestServer(t, nil)
	seed(pipe, "a")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"

	// Unknown and missing origins are refused.
	for _, origin := range []string{"", "http://evil.test"} {
		header := http.Header{}
		if origin != "" {
			header.Set("Origin", origin)
		}
		if conn, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
			conn.Close()
			t.Errorf("origin %q should be rejected", origin)
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://dashboard.test"}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var greeting struct {
		Type string          `json:"type"`
		Data models.Snapshot `json:"data"`
	}
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatal(err)
	}
	if greeting.Type != ws.MessageTypeSnapshot || len(greeting.Data.Threats) != 1 {
		t.Errorf("greeting = %+v", greeting)
	}

	seed(pipe, "b")

	// Broadcasts queued before registration may still arrive; read until
	// the snapshot carrying "b" shows up.
	for {
		var update struct {
			Type string          `json:"type"`
			Data models.Snapshot `json:"data"`
		}
		if err := conn.ReadJSON(&update); err != nil {
			t.Fatalf("no snapshot with the new threat: %v", err)
		}
		if update.Type != ws.MessageTypeSnapshot || len(update.Data.Threats) < 2 {
			continue
		}
		if update.Data.Threats[1].Hash != "b" {
			t.Errorf("update = %+v", update.Data.Threats)
		}
		break
	}
	if hub.GetClientCount() != 1 {
		t.Errorf("clients = %d", hub.GetClientCount())
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}
