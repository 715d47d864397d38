package server

import (
	"net/http"
	"sync"
	"time"

	"inkwell/internal/async"
	"inkwell/internal/events"
	"inkwell/internal/logging"

	"github.com/gorilla/websocket"
)

const (
	clientSendBuffer = 32
	writeWait        = 10 * time.Second
	pingPeriod       = 30 * time.Second
	pongWait         = 60 * time.Second
)

// Hub broadcasts block lifecycle events to websocket subscribers. It
// implements events.Sink, so it can sit in the same fanout as the metrics
// sink and logger sink.
type Hub struct {
	logger   logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	conn *websocket.Conn
	send chan events.Event
	done chan struct{}
	once sync.Once
}

// stop signals the pumps to exit. The send channel is never closed; a
// stopped client simply drops whatever is still buffered.
func (c *hubClient) stop() {
	c.once.Do(func() { close(c.done) })
}

// NewHub returns an empty hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger: logging.OrNop(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// Emit implements events.Sink. Slow subscribers are dropped rather than
// allowed to stall the emitter.
func (h *Hub) Emit(ev events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- ev:
		default:
			h.logger.Warn("dropping slow event subscriber")
			client.stop()
		}
	}
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade: %v", err)
		return
	}

	client := &hubClient{
		conn: conn,
		send: make(chan events.Event, clientSendBuffer),
		done: make(chan struct{}),
	}
	h.register(client)

	async.Go(h.logger, "ws-writer", func() { h.writePump(client) })
	async.Go(h.logger, "ws-reader", func() { h.readPump(client) })
}

func (h *Hub) register(client *hubClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("event subscriber connected (%d total)", total)
}

func (h *Hub) unregister(client *hubClient) {
	h.mu.Lock()
	_, known := h.clients[client]
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	client.stop()
	_ = client.conn.Close()
	if known {
		h.logger.Debug("event subscriber disconnected (%d total)", total)
	}
}

// writePump serializes events to one client, with keepalive pings.
func (h *Hub) writePump(client *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.unregister(client)
	}()

	for {
		select {
		case <-client.done:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = client.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case ev := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; its job is detecting the close.
func (h *Hub) readPump(client *hubClient) {
	defer h.unregister(client)

	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*hubClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*hubClient]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.stop()
		_ = client.conn.Close()
	}
}

var _ events.Sink = (*Hub)(nil)
