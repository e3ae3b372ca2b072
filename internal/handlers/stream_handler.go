package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shafin96/pulsegram/backend/internal/realtime"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamHandler attaches websocket clients to the notification hub
type StreamHandler struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(hub *realtime.Hub, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger}
}

// RegisterStreamRoutes registers the notification stream route
func (h *StreamHandler) RegisterStreamRoutes(g *echo.Group) {
	g.GET("/notifications/stream", h.Connect)
}

// Connect upgrades the request and keeps the connection registered until the
// peer goes away.
func (h *StreamHandler) Connect(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("stream upgrade failed", zap.Error(err))
		return nil
	}

	client := realtime.NewClient(currentUserID, conn)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	go client.WritePump(h.logger)
	client.ReadPump()
	return nil
}
