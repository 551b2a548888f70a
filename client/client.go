// Package client is the participant side of the proctoring connection.
// A Client owns exactly one transport at a time and reconnects with a fixed
// interval until it is stopped.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"proctor/contract"
	"proctor/domain"
	"proctor/errors"
	"proctor/protocol"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

const (
	DefaultReconnectInterval = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
)

// Identity is what the client re-sends in REGISTER on every connect.
type Identity struct {
	ParticipantID string
	Name          string
	ComputerIP    string
	ComputerName  string
}

type Config struct {
	// ServerURL is the websocket base, e.g. ws://proctor.local:8765.
	ServerURL         string
	Identity          Identity
	ReconnectInterval time.Duration
	WriteTimeout      time.Duration
}

// Handler consumes one server message. Handlers run on the read loop, one
// at a time, in arrival order.
type Handler func(msg protocol.Message)

type Client struct {
	cfg Config
	log *slog.Logger

	handlers map[protocol.MessageType]Handler

	mu   sync.Mutex
	conn *websocket.Conn

	// done is cancelled by Stop. It also cancels a dial in flight.
	done   context.Context
	cancel context.CancelFunc
}

var _ contract.ParticipantLink = (*Client)(nil)

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	done, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:      cfg,
		log:      log.With("participant_id", cfg.Identity.ParticipantID),
		handlers: make(map[protocol.MessageType]Handler),
		done:     done,
		cancel:   cancel,
	}
}

// Handle binds a handler to a server message type. Call it before Run.
func (c *Client) Handle(t protocol.MessageType, h Handler) *Client {
	c.handlers[t] = h
	return c
}

// Run connects, registers and reads until ctx is done or Stop is called.
// Whenever the transport goes away it waits ReconnectInterval and starts
// over, registering again each time.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unwatch := context.AfterFunc(c.done, cancel)
	defer unwatch()

	for {
		if c.stopped() || ctx.Err() != nil {
			return nil
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Warn("Connection failed, retrying", "error", err, "in", c.cfg.ReconnectInterval)
		} else {
			c.serve(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// Stop clears the desire to be connected and closes the transport.
// No reconnect happens afterwards.
func (c *Client) Stop() {
	c.cancel()
	c.closeConn(nil)
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes one message on the current transport. A write failure drops
// the transport; the read loop then triggers the reconnect.
func (c *Client) Send(msg protocol.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := websocket.Message.Send(c.conn, string(b)); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return fmt.Errorf("%w: %v", errors.ErrSendFailed, err)
	}
	return nil
}

func (c *Client) SendHeartbeat() error {
	return c.send(protocol.Heartbeat, nil)
}

func (c *Client) SendStatusUpdate(status protocol.Data) error {
	return c.send(protocol.StatusUpdate, status)
}

func (c *Client) SendViolationReport(evt domain.ViolationEvent) error {
	return c.send(protocol.ViolationReport, protocol.Data{
		"violation_type": string(evt.Type),
		"severity":       string(evt.Severity),
		"description":    evt.Description,
	})
}

func (c *Client) SendPermissionRequest(requestType string, durationMinutes int, reason string) error {
	return c.send(protocol.PermissionRequest, protocol.Data{
		"request_type":     requestType,
		"duration_minutes": durationMinutes,
		"reason":           reason,
	})
}

func (c *Client) send(t protocol.MessageType, data protocol.Data) error {
	return c.Send(protocol.New(t, data, c.cfg.Identity.ParticipantID))
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint := strings.TrimRight(c.cfg.ServerURL, "/") + "/ws/" + url.PathEscape(c.cfg.Identity.ParticipantID)
	origin := "http" + strings.TrimPrefix(strings.TrimRight(c.cfg.ServerURL, "/"), "ws")
	wsCfg, err := websocket.NewConfig(endpoint, origin)
	if err != nil {
		return nil, err
	}
	return wsCfg.DialContext(ctx)
}

// serve owns conn until it fails: registers, then reads in order. A conn
// that finished its handshake after Stop is closed without being used.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	if c.stopped() || ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()
	defer c.closeConn(conn)

	// A blocked Receive only returns once the socket closes.
	unwatch := context.AfterFunc(ctx, func() { c.closeConn(conn) })
	defer unwatch()

	c.log.Info("Connected to proctor server", "url", c.cfg.ServerURL)
	if err := c.send(protocol.Register, protocol.Data{
		"name":          c.cfg.Identity.Name,
		"computer_ip":   c.cfg.Identity.ComputerIP,
		"computer_name": c.cfg.Identity.ComputerName,
	}); err != nil {
		c.log.Warn("Registration not sent", "error", err)
		return
	}

	for {
		var frame string
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			if !c.stopped() && ctx.Err() == nil {
				c.log.Warn("Connection lost", "error", err)
			}
			return
		}
		msg, err := protocol.Decode([]byte(frame))
		if err != nil {
			c.log.Warn("Ignoring malformed server message", "error", err)
			continue
		}
		h, ok := c.handlers[msg.Type]
		if !ok {
			c.log.Debug("No handler for server message", "type", msg.Type)
			continue
		}
		h(msg)
	}
}

// closeConn closes the current transport. With a non-nil conn it only acts
// if conn is still the current one.
func (c *Client) closeConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || (conn != nil && c.conn != conn) {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}

func (c *Client) stopped() bool {
	return c.done.Err() != nil
}
