package server

import (
	"errors"

	"inkwell/internal/notifications"
	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// NotificationsWebSocket streams the caller's realtime notification events.
func (s *Server) NotificationsWebSocket() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		uid, _ := conn.Locals("userID").(uint)

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			msg := "server busy"
			if errors.Is(err, notifications.ErrUserFull) {
				msg = "too many connections"
			}
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg))
			observability.GlobalLogger.Warn("websocket rejected", "user_id", uid, "error", err)
			return
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if s.hub == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Realtime notifications are unavailable",
			})
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
