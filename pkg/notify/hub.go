package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Client is one websocket connection subscribed to a set of rooms.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	rooms []string
}

// Hub tracks local websocket clients by room. It is the last hop of every
// event regardless of the broker in front of it.
type Hub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger.Named("hub"),
		rooms:  make(map[string]map[*Client]bool),
	}
}

// Publish delivers e to the clients of its topic on this instance.
func (h *Hub) Publish(ctx context.Context, e Event) error {
	msg, err := json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data,omitempty"`
	}{e.Name, e.Payload})
	if err != nil {
		return err
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.rooms[e.Topic] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Dropping slow websocket client", zap.String("topic", e.Topic))
		h.unregister(c)
	}
	return nil
}

// Subscribers returns the number of clients in room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Attach registers conn in rooms and starts its pumps. It returns right away.
func (h *Hub) Attach(conn *websocket.Conn, rooms []string) *Client {
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize), rooms: rooms}

	h.mu.Lock()
	for _, r := range rooms {
		if h.rooms[r] == nil {
			h.rooms[r] = make(map[*Client]bool)
		}
		h.rooms[r][c] = true
	}
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	registered := false
	for _, r := range c.rooms {
		if _, ok := h.rooms[r][c]; ok {
			registered = true
			delete(h.rooms[r], c)
			if len(h.rooms[r]) == 0 {
				delete(h.rooms, r)
			}
		}
	}
	if registered {
		close(c.send)
	}
}

// readPump discards client messages and detects closed connections.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("Websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug("Websocket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
