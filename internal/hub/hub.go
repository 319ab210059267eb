// Package hub fans preview updates out to the WebSocket clients watching them.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Stream message types.
const (
	TypeEvent = "event"
	TypeLog   = "log"
	TypeState = "state"
)

// Message is the envelope pushed to stream subscribers.
type Message struct {
	Type      string      `json:"type"`
	PreviewID string      `json:"preview_id"`
	Ts        int64       `json:"ts"`
	Data      interface{} `json:"data"`
}

// ErrBufferFull is returned when a subscriber cannot keep up.
var ErrBufferFull = errors.New("send buffer full")

// Connection is one subscriber of a preview stream.
type Connection struct {
	ID        string
	PreviewID string
	Conn      *websocket.Conn
	Send      chan []byte
	mu        sync.Mutex
}

type previewMessage struct {
	previewID string
	data      []byte
}

// Hub tracks subscribers by preview.
type Hub struct {
	connections map[string]*Connection
	previews    map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan previewMessage

	mu sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		previews:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan previewMessage, 256),
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.previews[conn.PreviewID] == nil {
				h.previews[conn.PreviewID] = make(map[string]bool)
			}
			h.previews[conn.PreviewID][conn.ID] = true
			h.mu.Unlock()
			log.Printf("Stream subscriber registered: %s (preview: %s)", conn.ID, conn.PreviewID)

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			var slow []*Connection
			h.mu.RLock()
			for connID := range h.previews[msg.previewID] {
				conn, ok := h.connections[connID]
				if !ok {
					continue
				}
				select {
				case conn.Send <- msg.data:
				default:
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range slow {
				log.Printf("WARN: stream subscriber %s buffer full, dropping", conn.ID)
				h.remove(conn)
			}
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if ids := h.previews[conn.PreviewID]; ids != nil {
		delete(ids, conn.ID)
		if len(ids) == 0 {
			delete(h.previews, conn.PreviewID)
		}
	}
	close(conn.Send)
	log.Printf("Stream subscriber unregistered: %s", conn.ID)
}

// NewConnection creates a subscriber for previewID. ws may be nil in tests.
func (h *Hub) NewConnection(ws *websocket.Conn, previewID string) *Connection {
	return &Connection{
		ID:        "sub_" + uuid.New().String()[:8],
		PreviewID: previewID,
		Conn:      ws,
		Send:      make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Publish sends a typed message to every subscriber of a preview. It never
// blocks the caller; when the hub is backed up the message is dropped.
func (h *Hub) Publish(previewID, msgType string, data interface{}) error {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		PreviewID: previewID,
		Ts:        time.Now().UnixMilli(),
		Data:      data,
	})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- previewMessage{previewID: previewID, data: payload}:
		return nil
	default:
		return ErrBufferFull
	}
}

// SubscriberCount returns the number of subscribers of a preview.
func (h *Hub) SubscriberCount(previewID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.previews[previewID])
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
