// Package ws bridges browser clients onto the line protocol over WebSocket.
// Each text message carries one or more newline-terminated protocol lines;
// a message without a trailing newline is treated as one complete line.
package ws

import (
	"errors"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"snake-arena/server/internal/net/proto"
	"snake-arena/server/internal/net/session"
	"snake-arena/server/internal/telemetry"
	"snake-arena/server/logging"
)

// TransportWebSocket names the bridge in events and diagnostics.
const TransportWebSocket = "websocket"

// HandlerConfig configures the bridge.
type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

// Handler upgrades HTTP requests and runs a protocol session on each.
type Handler struct {
	hub      session.Hub
	logger   telemetry.Logger
	pub      logging.Publisher
	upgrader websocket.Upgrader

	mu     sync.Mutex
	closed bool
	conns  map[*websocket.Conn]struct{}
	wg     sync.WaitGroup
}

// NewHandler constructs a WebSocket bridge onto hub.
func NewHandler(hub session.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		pub:      cfg.Publisher,
		upgrader: upgrader,
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	if !h.track(conn) {
		_ = conn.Close()
		return
	}
	defer h.untrack(conn)

	c := newConn(conn)
	err = session.Serve(h.hub, c, session.Config{
		Transport: TransportWebSocket,
		Publisher: h.pub,
		Logger:    h.logger,
	})
	if err != nil && !isClosure(err) {
		h.logger.Printf("[ws] session %s ended: %v", c.RemoteAddr(), err)
	}
	_ = c.Close()
}

// Close refuses new sessions and closes every open connection, which ends
// sessions still blocked on a read.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.conns {
		_ = conn.Close()
	}
}

// Wait blocks until every running session has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Sessions reports how many sessions are running.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Handler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	h.wg.Done()
}

func isClosure(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}

// conn adapts a WebSocket connection to session.LineConn. Gorilla allows one
// concurrent reader and one concurrent writer; the hub serialises writes.
type conn struct {
	ws    *websocket.Conn
	lines *proto.LineBuffer
	ready [][]byte
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws, lines: proto.NewLineBuffer(proto.DefaultMaxLine)}
}

func (c *conn) ReadLine() ([]byte, error) {
	for len(c.ready) == 0 {
		messageType, payload, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if len(payload) == 0 || payload[len(payload)-1] != '\n' {
			payload = append(payload, '\n')
		}
		c.ready = append(c.ready, c.lines.Feed(payload)...)
	}
	line := c.ready[0]
	c.ready = c.ready[1:]
	return line, nil
}

func (c *conn) Write(data []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) SetWriteDeadline(deadline time.Time) error {
	return c.ws.SetWriteDeadline(deadline)
}

func (c *conn) Close() error {
	return c.ws.Close()
}

func (c *conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
