// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatfeed/internal/models"
)

var upgrader = websocket.Upgrader{}

func threatJSON(hash string) string {
	return fmt.Sprintf(`{"hash":%q,"type":"port_scan","confidence":50,"source_ip":"203.0.113.9","timestamp":1718000000,"node_id":"n1"}`, hash)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig(url string) Config {
	cfg := DefaultConfig(url)
	cfg.HandshakeTimeout = time.Second
	cfg.ReconnectInitial = 10 * time.Millisecond
	cfg.ReconnectMax = 40 * time.Millisecond
	cfg.ReconnectJitter = 0
	return cfg
}

// collector records handled threats and state transitions.
type collector struct {
	mu      sync.Mutex
	threats []models.Threat
	states  []models.ConnectionState
	got     chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 100)}
}

func (c *collector) Handle(_ context.Context, t models.Threat) {
	c.mu.Lock()
	c.threats = append(c.threats, t)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) onState(s models.ConnectionState) {
	c.mu.Lock()
	c.states = append(c.states, s)
	c.mu.Unlock()
}

func (c *collector) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for threat %d of %d", i+1, n)
		}
	}
}

func (c *collector) hashes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.threats))
	for i, th := range c.threats {
		out[i] = th.Hash
	}
	return out
}

func (c *collector) sawState(s models.ConnectionState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.states {
		if st == s {
			return true
		}
	}
	return false
}

// holdOpen blocks until the client goes away.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func runConsumer(t *testing.T, c *Consumer) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	return func() error {
		stop()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
			return nil
		}
	}
}

func TestConsumer_DeliversInOrderAndDropsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range []string{
			threatJSON("a"),
			`{"hash":`,
			`{"hash":"bad","type":"x","confidence":101,"timestamp":1,"node_id":"n"}`,
			threatJSON("b"),
			threatJSON("c"),
		} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}
		holdOpen(conn)
	}))
	defer srv.Close()

	col := newCollector()
	c := New(testConfig(wsURL(srv)), col)
	c.OnStateChange(col.onState)
	stop := runConsumer(t, c)

	col.wait(t, 3)
	if c.State() != models.StateOpen {
		t.Errorf("State = %s, want open", c.State())
	}
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	if got := strings.Join(col.hashes(), ","); got != "a,b,c" {
		t.Errorf("handled = %s, want a,b,c", got)
	}
	if !col.sawState(models.StateConnecting) || !col.sawState(models.StateOpen) {
		t.Errorf("states = %v", col.states)
	}
	if c.State() != models.StateClosed {
		t.Errorf("State after Run = %s, want closed", c.State())
	}
}

func TestConsumer_ReconnectsAfterDisconnect(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(threatJSON(fmt.Sprintf("conn-%d", n))))
		if n == 1 {
			// Drop the first connection abruptly.
			return
		}
		holdOpen(conn)
	}))
	defer srv.Close()

	col := newCollector()
	c := New(testConfig(wsURL(srv)), col)
	c.OnStateChange(col.onState)
	stop := runConsumer(t, c)

	col.wait(t, 2)
	_ = stop()

	if got := strings.Join(col.hashes(), ","); got != "conn-1,conn-2" {
		t.Errorf("handled = %s", got)
	}
	if !col.sawState(models.StateReconnecting) {
		t.Errorf("expected a reconnecting state, got %v", col.states)
	}
	if conns.Load() < 2 {
		t.Errorf("connections = %d, want at least 2", conns.Load())
	}
}

func TestConsumer_GivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	cfg := testConfig(url)
	cfg.MaxRetries = 2
	c := New(cfg, HandlerFunc(func(context.Context, models.Threat) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Run(ctx)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("Run = %v, want ErrRetriesExhausted", err)
	}
	if c.State() != models.StateClosed {
		t.Errorf("State = %s, want closed", c.State())
	}
}

func TestConsumer_RejectedHandshakeIsRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(threatJSON("late")))
		holdOpen(conn)
	}))
	defer srv.Close()

	col := newCollector()
	cfg := testConfig(wsURL(srv))
	cfg.MaxRetries = 5
	stop := runConsumer(t, New(cfg, col))

	col.wait(t, 1)
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
	if attempts.Load() < 3 {
		t.Errorf("attempts = %d, want at least 3", attempts.Load())
	}
}

func TestConsumer_CancelWhileWaiting(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	cfg := testConfig(url)
	cfg.ReconnectInitial = time.Hour
	cfg.ReconnectMax = time.Hour
	c := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation during backoff")
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	c := New(Config{URL: "ws://example.invalid/ws"}, nil)
	if c.cfg.ReadTimeout != 60*time.Second || c.cfg.PingInterval != 30*time.Second {
		t.Errorf("defaults not applied: %+v", c.cfg)
	}
	if c.cfg.ReconnectMax < c.cfg.ReconnectInitial {
		t.Errorf("ReconnectMax %v < ReconnectInitial %v", c.cfg.ReconnectMax, c.cfg.ReconnectInitial)
	}
	if c.Endpoint() != "ws://example.invalid/ws" {
		t.Errorf("Endpoint = %s", c.Endpoint())
	}
	if c.State() != models.StateClosed {
		t.Errorf("initial State = %s", c.State())
	}
}
