package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/janainarocha/testrailviewer/internal/bus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHub broadcasts sync and report events to connected WebSocket clients.
type WSHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	events  chan bus.Event
	logger  *slog.Logger
}

// NewWSHub subscribes to the event bus and returns a hub ready to Run.
func NewWSHub(eb *bus.EventBus, logger *slog.Logger) *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]bool),
		events:  eb.Subscribe(),
		logger:  logger,
	}
}

// Run starts the hub's broadcast loop. It returns when the bus closes the
// subscription channel.
func (h *WSHub) Run() {
	for evt := range h.events {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}

		h.mu.Lock()
		for conn := range h.clients {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket.
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Keep the connection open; clients only listen.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
