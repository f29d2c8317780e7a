package relay

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/logrelay/internal/metrics"
	"github.com/harun/logrelay/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/harun/logrelay/pkg/relay"

// controlWriteWait bounds how long a ping or close frame may take to write.
const controlWriteWait = 5 * time.Second

// HandlerConfig holds connection handler configuration
type HandlerConfig struct {
	Registry     *Registry
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	PingInterval time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// Handler binds each WebSocket connection on /ws/{id} to one session and
// relays pipe and chat traffic between the connection and the session topics.
type Handler struct {
	registry     *Registry
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	pingInterval time.Duration
	upgrader     websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*connection
}

// NewHandler creates a new connection handler
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = cfg.Registry.metrics
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = func(*http.Request) bool { return true }
	}

	return &Handler{
		registry:     cfg.Registry,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With().Str("component", "relay-handler").Logger(),
		pingInterval: cfg.PingInterval,
		upgrader:     websocket.Upgrader{CheckOrigin: cfg.CheckOrigin},
		conns:        make(map[string]*connection),
	}, nil
}

// connection is the per-socket relay state.
type connection struct {
	id      string
	session *Session
	conn    *websocket.Conn
	pipe    *Subscription[string]
	chat    *Subscription[ChatMessage]
	logger    zerolog.Logger
	span      trace.Span
	closing   atomic.Bool
	published atomic.Int64
}

// ServeHTTP resolves the session named in the path, upgrades the request and
// blocks until the connection ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	session, err := h.registry.Attach(sessionID)
	if err != nil {
		h.metrics.ConnectionsRejected.Inc()
		h.logger.Warn().
			Str("sessionId", sessionID).
			Str("ip", r.RemoteAddr).
			Msg("Invalid session ID")
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.registry.abandon(sessionID)
		h.logger.Error().Err(err).Str("sessionId", sessionID).Msg("Failed to upgrade connection")
		return
	}

	connID, _ := gonanoid.New()
	ctx, span := tracing.StartSpan(r.Context(), tracerName, "relay.connection",
		attribute.String("session.id", sessionID),
		attribute.String("connection.id", connID),
	)
	c := &connection{
		id:      connID,
		session: session,
		conn:    conn,
		pipe:    session.Pipe.Subscribe(),
		chat:    session.Chat.Subscribe(),
		span:    span,
		logger: tracing.Logger(ctx, h.logger).With().
			Str("connId", connID).
			Str("sessionId", sessionID).
			Logger(),
	}

	h.track(c)
	c.logger.Info().Str("ip", r.RemoteAddr).Msg("Connection attached")

	h.serve(c)
}

// serve runs ingress and egress until either ends, then tears down.
func (h *Handler) serve(c *connection) {
	ingressDone := make(chan struct{})
	go func() {
		defer close(ingressDone)
		h.readLoop(c)
	}()

	h.writeLoop(c, ingressDone)

	c.closing.Store(true)
	c.conn.Close()
	<-ingressDone

	c.pipe.Close()
	c.chat.Close()
	removed := h.registry.Detach(c.session.ID)
	h.untrack(c)

	c.span.SetAttributes(
		attribute.Int64("messages.published", c.published.Load()),
		attribute.Int64("messages.dropped", int64(c.pipe.Dropped()+c.chat.Dropped())),
		attribute.Bool("session.removed", removed),
	)
	tracing.EndSpan(c.span, nil)

	c.logger.Info().
		Bool("sessionRemoved", removed).
		Uint64("pipeDropped", c.pipe.Dropped()).
		Uint64("chatDropped", c.chat.Dropped()).
		Msg("Connection closed")
}

// readLoop demultiplexes inbound text frames into the session topics.
func (h *Handler) readLoop(c *connection) {
	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			h.logReadError(c, err)
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Debug().Int("messageType", messageType).Msg("Ignoring non-text frame")
			continue
		}

		frame := ClassifyFrame(payload)
		var receivers int
		switch frame.Kind {
		case FrameChat:
			receivers = c.session.Chat.Publish(frame.Chat, c.chat)
		default:
			receivers = c.session.Pipe.Publish(frame.Text, c.pipe)
		}
		h.metrics.MessagesPublished.WithLabelValues(frame.Kind.String()).Inc()
		c.published.Add(1)

		if receivers == 0 {
			c.logger.Debug().
				Str("topic", frame.Kind.String()).
				Msg("No subscribers to broadcast to")
		}
	}
}

func (h *Handler) logReadError(c *connection, err error) {
	var closeErr *websocket.CloseError
	switch {
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Error().Err(err).Msg("WebSocket error")
	case errors.As(err, &closeErr):
		c.logger.Debug().Int("code", closeErr.Code).Msg("Peer closed connection")
	case c.closing.Load():
		c.logger.Debug().Err(err).Msg("Read ended after egress shutdown")
	default:
		c.logger.Error().Err(err).Msg("WebSocket receive failed")
	}
}

// writeLoop multiplexes both topics onto the connection until a send fails
// or ingress stops.
func (h *Handler) writeLoop(c *connection, done <-chan struct{}) {
	var ping <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-done:
			return

		case text, ok := <-c.pipe.C():
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, EncodePipe(text)); err != nil {
				c.logger.Error().Err(err).Str("topic", "pipe").Msg("Failed to send message")
				return
			}

		case msg, ok := <-c.chat.C():
			if !ok {
				return
			}
			data, err := EncodeChat(msg)
			if err != nil {
				c.logger.Error().Err(err).Msg("Failed to encode chat message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error().Err(err).Str("topic", "chat").Msg("Failed to send message")
				return
			}

		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to send ping")
				return
			}
		}
	}
}

func (h *Handler) track(c *connection) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.metrics.ConnectionsActive.Inc()
}

func (h *Handler) untrack(c *connection) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()

	h.metrics.ConnectionsActive.Dec()
}

// Count returns the number of live connections
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.conns)
}

// CloseAll sends a going-away close frame to every live connection and
// closes it. Each connection then tears down through its own loops.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.closing.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
		c.conn.Close()
	}
}
