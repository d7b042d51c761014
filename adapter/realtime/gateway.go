package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/felixgeelhaar/taskboard/internal/board/infrastructure/auth"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
)

// GatewayConfig tunes websocket connections.
type GatewayConfig struct {
	ReadLimit      int64
	SendBuffer     int
	PingInterval   time.Duration
	RateLimit      float64
	RateBurst      int
	OriginPatterns []string
}

// DefaultGatewayConfig returns the defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ReadLimit:    64 << 10,
		SendBuffer:   256,
		PingInterval: 30 * time.Second,
		RateLimit:    20,
		RateBurst:    40,
	}
}

// Gateway authenticates websocket upgrades and runs the connections.
type Gateway struct {
	verifier auth.Verifier
	hub      *Hub
	router   *Router
	config   GatewayConfig
	metrics  observability.Metrics
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGateway creates a gateway. Close it to end every connection.
func NewGateway(verifier auth.Verifier, hub *Hub, router *Router, config GatewayConfig, metrics observability.Metrics, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	defaults := DefaultGatewayConfig()
	if config.ReadLimit <= 0 {
		config.ReadLimit = defaults.ReadLimit
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaults.RateLimit
	}
	if config.RateBurst <= 0 {
		config.RateBurst = defaults.RateBurst
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		verifier: verifier,
		hub:      hub,
		router:   router,
		config:   config,
		metrics:  metrics,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ServeHTTP authenticates the request, upgrades it and serves the connection
// until either side closes it.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := g.verifier.Verify(r.Context(), TokenFromRequest(r))
	if err != nil {
		g.logger.InfoContext(r.Context(), "websocket connection rejected", "remote", r.RemoteAddr, "error", err)
		WriteEnvelope(w, http.StatusUnauthorized, Fail(auth.ErrUnauthenticated))
		return
	}

	// Server timeouts are meant for the JSON routes, not a long-lived socket.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: g.config.OriginPatterns})
	if err != nil {
		g.logger.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(g.config.ReadLimit)

	g.wg.Add(1)
	defer g.wg.Done()
	g.serve(conn, *identity)
}

func (g *Gateway) serve(conn *websocket.Conn, identity auth.Identity) {
	ctx, cancel := context.WithCancel(g.ctx)
	defer cancel()

	c := newClient(identity, conn, g.config)
	g.hub.Register(c)
	logger := g.logger.With("connection_id", c.ID(), "user_id", identity.UserID)
	logger.Info("websocket connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx, g.config.PingInterval, logger)
		cancel()
	}()

	g.hub.Reply(ctx, c, "", EventConnected, OK(ConnectedData{
		UserID:       identity.UserID,
		Name:         identity.Name,
		ConnectionID: c.ID(),
	}))

	c.readPump(ctx, g.router, logger)
	cancel()
	c.markClosed()
	<-writerDone

	orphaned := g.hub.Unregister(c)
	cleanupCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	g.router.Disconnected(cleanupCtx, c, orphaned)
	done()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	logger.Info("websocket disconnected")
}

// Close ends every connection and waits for them to finish.
func (g *Gateway) Close() {
	g.cancel()
	g.wg.Wait()
}

// TokenFromRequest reads the credential from the Authorization header, the
// token query parameter or the token cookie, in that order.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

// WriteEnvelope writes an envelope as a JSON HTTP response.
func WriteEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
