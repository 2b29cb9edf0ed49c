package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

// wsEvent is the envelope pushed to dashboard clients.
type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans dashboard state changes out to connected websocket clients so the
// dashboard does not have to poll. Clients never send application messages;
// the read loop only watches for close.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func newHub() *Hub {
	return &Hub{
		clients: map[*websocket.Conn]struct{}{},
		upgrader: websocket.Upgrader{
			// Same permissive policy as the CORS middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GET /api/ws/dashboard
func (h *Hub) handleDashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast sends an event to every connected client. Clients that fail the
// write are dropped; the dashboard reconnects on its own.
func (h *Hub) Broadcast(event string, data any) {
	msg := wsEvent{Type: event, Data: data}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

// ClientCount reports the number of connected dashboard sockets.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
