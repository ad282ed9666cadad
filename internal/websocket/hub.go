// Package websocket delivers wizard notifications to connected browser
// clients. Each wizard session owns one Hub; a bus adapter forwards every
// bus event to the hub as a JSON message.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"sportsbet/internal/infrastructure"
	"sportsbet/internal/wizard"
)

// Message type constants.
const (
	TypeConnection  = "connection"
	TypeWizardEvent = "wizard:event"
)

// Envelope is the wire form of every hub message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of active clients for one session and broadcasts
// messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}

	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Start launches the hub's run loop. Safe to call more than once.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()
	go h.run()
}

// Stop terminates the run loop and disconnects every client.
func (h *Hub) Stop() {
	close(h.quit)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.logger.Info("hub shut down")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", len(h.clients)))
			client.enqueue(mustMarshal(Envelope{Type: TypeConnection, Data: map[string]string{"status": "connected"}}))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("client unregistered",
					slog.String("client_id", client.id),
					slog.Int("total_clients", len(h.clients)))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				client.enqueue(message)
			}
		}
	}
}

// Broadcast sends a raw message to every connected client. Non-blocking:
// if the hub is backed up the message is dropped with a warning.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.quit:
	default:
		h.logger.Warn("broadcast queue full, dropping message")
	}
}

// BroadcastEvent forwards one wizard bus event to the clients.
func (h *Hub) BroadcastEvent(e wizard.Event) {
	if e.StageName == "" {
		e.StageName = e.Stage.String()
	}
	h.Broadcast(mustMarshal(Envelope{Type: TypeWizardEvent, Data: e}))
}

// AttachBus subscribes the hub to every topic of the wizard bus. Wizard
// state payloads ride to the rendering layer with no extra bookkeeping.
func (h *Hub) AttachBus(bus *wizard.Bus) {
	bus.SubscribeAll(h.BroadcastEvent)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Envelope payloads are JSON-safe by construction.
		return []byte(`{"type":"error"}`)
	}
	return data
}
