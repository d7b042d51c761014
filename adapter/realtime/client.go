package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/auth"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const writeTimeout = 10 * time.Second

// Client is one authenticated websocket connection. Its identity is fixed
// for the lifetime of the connection.
type Client struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	send     chan []byte
	limiter  *rate.Limiter

	// touched holds when this connection last refreshed each of its sessions.
	touchedMu sync.Mutex
	touched   map[uuid.UUID]time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(identity auth.Identity, conn *websocket.Conn, cfg GatewayConfig) *Client {
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, cfg.SendBuffer),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		touched:  make(map[uuid.UUID]time.Time),
		closed:   make(chan struct{}),
	}
}

func (c *Client) ID() string              { return c.id }
func (c *Client) UserID() uuid.UUID       { return c.identity.UserID }
func (c *Client) Identity() auth.Identity { return c.identity }

func (c *Client) markTouched(taskID uuid.UUID, at time.Time) {
	c.touchedMu.Lock()
	c.touched[taskID] = at
	c.touchedMu.Unlock()
}

func (c *Client) lastTouched(taskID uuid.UUID) time.Time {
	c.touchedMu.Lock()
	defer c.touchedMu.Unlock()
	return c.touched[taskID]
}

// enqueue queues a frame without blocking. It reports false when the
// connection is closed or its buffer is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// readPump feeds inbound frames to the router one at a time until the
// connection fails or ctx ends.
func (c *Client) readPump(ctx context.Context, router *Router, logger *slog.Logger) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && !isNormalClose(err) {
				logger.Debug("websocket read ended", "connection_id", c.id, "error", err)
			}
			return
		}
		var in InboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			router.rejectMalformed(ctx, c)
			continue
		}
		if !c.limiter.Allow() {
			router.rejectRateLimited(ctx, c, in)
			continue
		}
		router.Handle(ctx, c, in)
	}
}

// writePump drains the send buffer and pings the peer.
func (c *Client) writePump(ctx context.Context, pingInterval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case frame := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				logger.Debug("websocket write failed", "connection_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Debug("websocket ping failed", "connection_id", c.id, "error", err)
				return
			}
		}
	}
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
