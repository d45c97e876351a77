// Package ws pushes session events to connected browsers over websockets.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/storyrank/internal/domain/types"
	"github.com/okian/storyrank/pkg/logger"
	"github.com/okian/storyrank/pkg/metrics"
)

const defaultWriteTimeout = 5 * time.Second

type client struct {
	conn *websocket.Conn
	wmu  sync.Mutex // gorilla allows one concurrent writer
}

func (c *client) write(data []byte, timeout time.Duration) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub keeps the websocket connections of every session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
	total    int

	upgrader       websocket.Upgrader
	writeTimeout   time.Duration
	allowedOrigins map[string]struct{}

	logger logger.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		sessions:     make(map[string]map[*client]struct{}),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("ws-hub")
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	_, ok := h.allowedOrigins[r.Header.Get("Origin")]
	return ok
}

func (h *Hub) subscribe(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*client]struct{})
	}
	h.sessions[sessionID][c] = struct{}{}
	h.total++
	metrics.UpdateWSConnections(h.total)
}

func (h *Hub) unsubscribe(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.sessions, sessionID)
	}
	h.total--
	metrics.UpdateWSConnections(h.total)
}

// Serve upgrades the request and holds the connection until the client
// goes away. The caller has already checked that the session exists.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Warn(ctx, "websocket upgrade failed",
			logger.String("session", sessionID),
			logger.Error(err),
		)
		return
	}
	c := &client{conn: conn}
	h.subscribe(sessionID, c)
	h.logger.Debug(ctx, "websocket subscribed", logger.String("session", sessionID))

	defer func() {
		h.unsubscribe(sessionID, c)
		_ = conn.Close()
		h.logger.Debug(ctx, "websocket unsubscribed", logger.String("session", sessionID))
	}()

	// clients never send anything; reading is how a disconnect shows up
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn(ctx, "websocket closed unexpectedly",
					logger.String("session", sessionID),
					logger.Error(err),
				)
			}
			return
		}
	}
}

// Publish sends e to every connection of the session. Slow or broken
// connections are dropped.
func (h *Hub) Publish(ctx context.Context, sessionID string, e types.SessionEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error(ctx, "marshal session event", logger.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(data, h.writeTimeout); err != nil {
			h.logger.Warn(ctx, "websocket write failed",
				logger.String("session", sessionID),
				logger.String("event", e.Type),
				logger.Error(err),
			)
			h.unsubscribe(sessionID, c)
			_ = c.conn.Close()
		}
	}
	metrics.RecordWSBroadcast(e.Type)
}

// ConnectionCount returns the number of connections on a session.
func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
