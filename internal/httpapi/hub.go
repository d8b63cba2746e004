package httpapi

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"rlm/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans out every engine event (spec.md §4.9, §6) to every connected
// observer websocket, in emission order. Grounded on the pack's
// codeready-toolchain-tarsy WSHub (pkg/api/handler_ws.go): a
// register/unregister/broadcast channel triple serialized through one
// goroutine, generalized from session-scoped alert messages to the
// engine's single ordered event stream.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan events.WireEvent
}

// NewHub builds a Hub and starts its broadcast loop.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan events.WireEvent, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				_ = conn.Close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("httpapi: websocket write failed, dropping client: %v", err)
					go func(c *websocket.Conn) { h.unregister <- c }(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast enqueues a wire event for delivery to every connected client.
// Called synchronously from the event bus listener, so the channel buffer
// (256) bounds how far a slow consumer can lag before Broadcast blocks —
// acceptable since the bus itself is the engine's only emission path.
func (h *Hub) Broadcast(e events.WireEvent) {
	h.broadcast <- e
}

// Serve upgrades r to a websocket and registers it until the client
// disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}
	h.register <- conn

	// Drain inbound frames (observers never send us anything meaningful)
	// until the connection drops, then unregister.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister <- conn
			return
		}
	}
}
