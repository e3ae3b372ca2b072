package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shafin96/pulsegram/backend/internal/models"
	"go.uber.org/zap"
)

// NotificationFrame is the wire shape pushed over the notification stream.
type NotificationFrame struct {
	Kind  string              `json:"kind"`
	Event models.Notification `json:"event"`
	Actor models.UserCompact  `json:"actor"`
}

// Hub tracks live websocket connections per recipient and pushes freshly
// recorded notification events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
	logger  *zap.Logger
}

// NewHub creates an empty Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uint]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a connection under its recipient id
func (h *Hub) Register(c *Client) {
	if c == nil || c.recipientID == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.recipientID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.clients[c.recipientID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes and closes a connection
func (h *Hub) Unregister(c *Client) {
	if c == nil || c.recipientID == 0 {
		return
	}
	h.mu.Lock()
	set := h.clients[c.recipientID]
	if set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.recipientID)
		}
	}
	h.mu.Unlock()
	c.Close()
}

// PublishNotification pushes one event to every live connection of the
// recipient. Recipients with no connections are a silent no-op.
func (h *Hub) PublishNotification(recipientID uint, event models.Notification, actor models.UserCompact) {
	payload, err := json.Marshal(NotificationFrame{
		Kind:  "notification",
		Event: event,
		Actor: actor,
	})
	if err != nil {
		h.logger.Error("could not encode notification frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	set := h.clients[recipientID]
	conns := make([]*Client, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		select {
		case c.send <- payload:
		default:
			// slow consumer, drop the connection rather than the event queue
			h.Unregister(c)
		}
	}
}

// Client is one websocket connection owned by a recipient.
type Client struct {
	recipientID uint
	conn        *websocket.Conn
	send        chan []byte

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection
func NewClient(recipientID uint, conn *websocket.Conn) *Client {
	return &Client{
		recipientID: recipientID,
		conn:        conn,
		send:        make(chan []byte, 64),
	}
}

// Close shuts the connection down exactly once
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// WritePump drains the send channel onto the wire; it returns when the
// channel closes or a write fails.
func (c *Client) WritePump(logger *zap.Logger) {
	if c.conn == nil {
		return
	}
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("stream write failed", zap.Error(err))
			return
		}
	}
}

// ReadPump discards inbound frames until the peer goes away. The stream is
// one-directional; reading only serves to detect disconnects.
func (c *Client) ReadPump() {
	if c.conn == nil {
		return
	}
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
