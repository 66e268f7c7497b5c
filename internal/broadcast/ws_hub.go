// WebSocket hub for pushing bus events to connected clients.
package broadcast

import (
	"net/http"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// WSHub bridges the broadcaster to WebSocket clients. Each connection gets
// its own bus subscription; events addressed to a user reach only sockets
// identifying as that user (via the user_id query parameter — actual
// authentication is handled by the API gateway in front).
type WSHub struct {
	bus *Broadcaster

	mu       sync.RWMutex
	clients  map[*websocket.Conn]string // conn -> userID ("" = anonymous)
	onChange func(n int)
}

// NewWSHub creates a hub on top of the given broadcaster.
func NewWSHub(bus *Broadcaster) *WSHub {
	return &WSHub{
		bus:     bus,
		clients: make(map[*websocket.Conn]string),
	}
}

// OnCountChange registers a callback invoked with the client count after
// every connect and disconnect. Must be set before serving connections.
func (h *WSHub) OnCountChange(fn func(n int)) {
	h.onChange = fn
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	userID := r.URL.Query().Get("user_id")

	h.mu.Lock()
	h.clients[conn] = userID
	total := len(h.clients)
	h.mu.Unlock()
	slog.Info("ws client connected", "user", userID, "total", total)
	if h.onChange != nil {
		h.onChange(total)
	}

	sub := h.bus.Subscribe(ForUser(userID))

	// Write pump: drain the subscription into the socket.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := conn.WriteJSON(ev); err != nil {
					h.drop(conn, sub)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.drop(conn, sub)
					return
				}
			}
		}
	}()

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer h.drop(conn, sub)
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(readDeadline))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// drop removes a client and tears down its subscription. Safe to call twice.
func (h *WSHub) drop(conn *websocket.Conn, sub *Subscription) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		conn.Close()
		h.bus.Unsubscribe(sub)
		if h.onChange != nil {
			h.onChange(total)
		}
	}
}
