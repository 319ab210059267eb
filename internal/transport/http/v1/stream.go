package v1

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/agentbuilder/internal/hub"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 60 * time.Second
	streamPingInterval = 30 * time.Second
	streamMaxMessage   = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamPreview upgrades to a WebSocket pushing every event, log and settled
// state of a preview. The current state is sent first.
// GET /v1/previews/:preview_id/stream
func (h *Handler) StreamPreview(c echo.Context) error {
	ctx := c.Request().Context()
	previewID := c.Param("preview_id")

	state, err := h.service.GetState(ctx, previewID)
	if err != nil {
		return previewError(c, err)
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}
	ws.SetReadLimit(streamMaxMessage)

	conn := h.hub.NewConnection(ws, previewID)
	h.hub.Register(conn)

	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.Conn.WriteJSON(hub.Message{
		Type:      hub.TypeState,
		PreviewID: previewID,
		Ts:        time.Now().UnixMilli(),
		Data:      state,
	}); err != nil {
		log.Printf("Failed to write initial state: %v", err)
	}

	go h.writePump(conn)
	go h.readPump(conn)
	return nil
}

// readPump drains client frames so pongs and close frames are processed.
func (h *Handler) readPump(conn *hub.Connection) {
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump writes hub messages to the WebSocket connection.
func (h *Handler) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(streamPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
