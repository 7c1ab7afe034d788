package handler

import (
	"clinical-coding-be/internal/pkg/logger"
	internalWS "clinical-coding-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// EventFeedHandler exposes the live coding event feed over websocket.
type EventFeedHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewEventFeedHandler(hub *internalWS.Hub, log logger.ILogger) *EventFeedHandler {
	return &EventFeedHandler{
		hub:    hub,
		logger: log,
	}
}

// ServeWs handles websocket requests from the peer. The feed is read-only and
// unauthenticated, so the connection upgrades directly.
func (h *EventFeedHandler) ServeWs(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("EventFeedHandler", "Starting WebSocket session", nil)
			internalWS.ServeWs(h.hub, conn)
			h.logger.Info("EventFeedHandler", "WebSocket session ended", nil)
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// RegisterRoutes registers the event feed routes.
func (h *EventFeedHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/events", h.ServeWs)
}
