package websocket

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sportsbet/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from the peer.
	maxMessageSize = 512
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	id     string
	logger *slog.Logger
}

// NewClient wraps a websocket connection.
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	id := uuid.New().String()
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
		id:   id,
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id)),
	}
}

// enqueue queues a message for the client, dropping it if the client's
// buffer is full.
func (c *Client) enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
		c.logger.Warn("client send buffer full, dropping message")
	}
}

// detach hands the client back to the hub. Hubs are per-session and stop
// when the session ends, so the unregister send must not outlive the run
// loop.
func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.quit:
	}
}

// readPump pumps control messages from the connection to keep it alive.
// Client commands arrive over HTTP, not the socket, so inbound payloads
// are discarded.
func (c *Client) readPump() {
	defer func() {
		c.detach()
		c.conn.Close()
		c.logger.Info("client disconnected")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS registers the connection with the hub and starts its pumps.
func ServeWS(hub *Hub, conn *websocket.Conn, logger *slog.Logger) {
	client := NewClient(hub, conn, logger)
	hub.register <- client
	go client.writePump()
	go client.readPump()
}
