// Threatfeed - Live Threat Ingestion and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
)

const (
	maxMessageSize = 64 * 1024
	writeWait      = 10 * time.Second
)

// Handler receives every decoded threat. It is called on the read
// goroutine; the next message is not read until it returns.
type Handler interface {
	Handle(ctx context.Context, t models.Threat)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t models.Threat)

// Handle calls f(ctx, t).
func (f HandlerFunc) Handle(ctx context.Context, t models.Threat) { f(ctx, t) }

// Config controls the connection and reconnect policy.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	ReconnectJitter  float64
	// MaxRetries is the number of consecutive failed dials tolerated
	// before Run gives up. 0 retries forever.
	MaxRetries int
}

// DefaultConfig returns the shipped defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		ReconnectInitial: time.Second,
		ReconnectMax:     30 * time.Second,
		ReconnectJitter:  0.2,
	}
}

// ErrRetriesExhausted is returned by Run when MaxRetries dials in a row failed.
var ErrRetriesExhausted = errors.New("stream: reconnect attempts exhausted")

// Consumer reads threats from a WebSocket feed.
type Consumer struct {
	cfg     Config
	handler Handler
	dialer  websocket.Dialer

	stateMu  sync.RWMutex
	state    models.ConnectionState
	onChange func(models.ConnectionState)
}

// New creates a Consumer. Nothing is dialed until Run.
func New(cfg Config, h Handler) *Consumer {
	def := DefaultConfig(cfg.URL)
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = def.ReconnectInitial
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = max(def.ReconnectMax, cfg.ReconnectInitial)
	}

	return &Consumer{
		cfg:     cfg,
		handler: h,
		dialer: websocket.Dialer{
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: true,
		},
		state: models.StateClosed,
	}
}

// OnStateChange registers fn to be called on every state transition.
// It must be set before Run.
func (c *Consumer) OnStateChange(fn func(models.ConnectionState)) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.onChange = fn
}

// State returns the current connection state.
func (c *Consumer) State() models.ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Endpoint returns the feed URL.
func (c *Consumer) Endpoint() string {
	return c.cfg.URL
}

// Run connects and consumes until ctx is cancelled, reconnecting after
// every disconnect. It returns ctx.Err() on cancellation, or an error
// wrapping ErrRetriesExhausted when the retry ceiling is hit.
func (c *Consumer) Run(ctx context.Context) error {
	bo := c.newBackOff()
	failures := 0
	defer c.setState(models.StateClosed)

	c.setState(models.StateConnecting)
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			metrics.StreamConnectAttempts.WithLabelValues("failure").Inc()
			metrics.StreamTransportErrors.WithLabelValues("dial").Inc()
			if c.cfg.MaxRetries > 0 && failures > c.cfg.MaxRetries {
				logging.Error().Err(err).Int("attempts", failures).Str("url", c.cfg.URL).
					Msg("Giving up on threat stream")
				return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, failures, err)
			}
			wait := bo.NextBackOff()
			logging.Warn().Err(err).Int("attempt", failures).Dur("delay", wait).
				Msg("Threat stream dial failed, retrying")
			c.setState(models.StateReconnecting)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}

		metrics.StreamConnectAttempts.WithLabelValues("success").Inc()
		failures = 0
		bo.Reset()
		c.setState(models.StateOpen)
		logging.Info().Str("url", c.cfg.URL).Msg("Connected to threat stream")

		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			logging.Info().Msg("Threat stream closed by server")
		} else {
			metrics.StreamTransportErrors.WithLabelValues("read").Inc()
			logging.Warn().Err(err).Msg("Threat stream read error")
		}

		c.setState(models.StateReconnecting)
		wait := bo.NextBackOff()
		logging.Info().Dur("delay", wait).Msg("Reconnecting to threat stream")
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) newBackOff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.cfg.ReconnectInitial),
		backoff.WithMaxInterval(c.cfg.ReconnectMax),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(c.cfg.ReconnectJitter),
		backoff.WithMaxElapsedTime(0),
	)
}

func (c *Consumer) dial(ctx context.Context) (*websocket.Conn, error) {
	logging.Debug().Str("url", c.cfg.URL).Msg("Dialing threat stream")

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close handshake response body")
		}
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// serve reads from conn until it fails or ctx is cancelled.
func (c *Consumer) serve(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	c.extendDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendDeadline(conn)
		return nil
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pingLoop(conn, done)
	}()

	// Cancellation unblocks ReadMessage by closing the socket.
	stop := context.AfterFunc(ctx, func() { closeConn(conn) })
	defer func() {
		stop()
		close(done)
		wg.Wait()
		closeConn(conn)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.extendDeadline(conn)
		c.handleMessage(ctx, data)
	}
}

func (c *Consumer) handleMessage(ctx context.Context, data []byte) {
	res := Decode(data)
	if !res.OK() {
		metrics.StreamMessages.WithLabelValues("dropped").Inc()
		metrics.StreamDecodeErrors.WithLabelValues(res.Err.Reason).Inc()
		logging.Warn().Err(res.Err).Str("reason", res.Err.Reason).Int("bytes", len(data)).
			Msg("Dropping malformed threat message")
		return
	}

	metrics.StreamMessages.WithLabelValues("accepted").Inc()
	if c.handler != nil {
		c.handler.Handle(ctx, res.Threat)
	}
}

func (c *Consumer) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				metrics.StreamTransportErrors.WithLabelValues("ping").Inc()
				logging.Warn().Err(err).Msg("Threat stream keep-alive failed")
				closeConn(conn)
				return
			}
		}
	}
}

func (c *Consumer) extendDeadline(conn *websocket.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		logging.Debug().Err(err).Msg("Failed to set read deadline")
	}
}

func (c *Consumer) setState(s models.ConnectionState) {
	c.stateMu.Lock()
	if c.state == s {
		c.stateMu.Unlock()
		return
	}
	from := c.state
	c.state = s
	fn := c.onChange
	c.stateMu.Unlock()

	metrics.SetStreamState(string(s))
	logging.Debug().Str("from", string(from)).Str("to", string(s)).Msg("Threat stream state changed")
	if fn != nil {
		fn(s)
	}
}

// closeConn sends a close frame and closes the socket. Safe to call more
// than once and from any goroutine.
func closeConn(conn *websocket.Conn) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = conn.Close()
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
