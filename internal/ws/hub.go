// Package ws implements the gateway's push channel: a websocket hub that
// sends each new client an initial_state snapshot and then streams
// status_update deltas produced by the status consumer.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jobsift/jobsift/internal/status"
)

const (
	writeTimeout = 10 * time.Second
	// broadcastBuffer decouples the consumer goroutine from websocket I/O.
	broadcastBuffer = 256
)

// statusUpdate is the per-job delta message.
type statusUpdate struct {
	Type  string         `json:"type"`
	JobID string         `json:"job_id"`
	Data  map[string]any `json:"data"`
}

// initialState carries the full status-map snapshot on connect. Jobs is
// always present, even when empty.
type initialState struct {
	Type string                  `json:"type"`
	Jobs map[string]status.Entry `json:"jobs"`
}

// client pairs a connection with a write mutex; gorilla connections allow
// only one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// HubOptions configures a Hub.
type HubOptions struct {
	Logger *slog.Logger
	// Snapshot supplies the current status map for initial_state messages.
	Snapshot func() map[string]status.Entry
}

// Hub owns the client set and the broadcast queue. Broadcasts are enqueued
// by the consumer goroutine and drained by Run, so websocket writes never
// happen on the consumer's stack.
type Hub struct {
	logger   *slog.Logger
	snapshot func() map[string]status.Entry
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]bool

	queue chan statusUpdate
}

// NewHub builds a hub. The origin check is permissive: the pipeline UI is
// served from a separate origin and the API carries no credentials.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	snapshot := opts.Snapshot
	if snapshot == nil {
		snapshot = func() map[string]status.Entry { return nil }
	}
	return &Hub{
		logger:   logger.With("component", "ws_hub"),
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
		queue:   make(chan statusUpdate, broadcastBuffer),
	}
}

// Run drains the broadcast queue until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.queue:
			h.fanOut(msg)
		}
	}
}

// BroadcastStatus enqueues one status_update delta. When the queue is full
// (a stalled Run loop, typically during shutdown) the delta is dropped with
// a warning; clients resynchronize from initial_state on reconnect.
func (h *Hub) BroadcastStatus(jobID string, data map[string]any) {
	msg := statusUpdate{Type: "status_update", JobID: jobID, Data: data}
	select {
	case h.queue <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping delta", "job_id", jobID)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection, sends the initial snapshot, and then
// blocks reading until the client goes away. Inbound frames are logged and
// ignored; the channel is server-push only.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn}
	h.register(c)
	defer h.unregister(c)

	if err := c.send(initialState{Type: "initial_state", Jobs: h.snapshot()}); err != nil {
		h.logger.Warn("failed to send initial state", "remote", r.RemoteAddr, "error", err)
		return
	}

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if msgType == websocket.TextMessage {
			h.logger.Debug("ignoring inbound websocket frame",
				"remote", r.RemoteAddr, "payload", string(payload))
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	h.logger.Info("websocket client connected", "total", len(h.clients))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		_ = c.conn.Close()
		h.logger.Info("websocket client disconnected", "total", total)
	}
}

// fanOut sends one message to a snapshot of the client list. A failed send
// disconnects only that client.
func (h *Hub) fanOut(msg statusUpdate) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.logger.Warn("broadcast send failed, dropping client", "error", err)
			h.unregister(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.clients = make(map[*client]bool)
	h.mu.Unlock()

	for _, c := range targets {
		_ = c.conn.Close()
	}
}
