package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/set-night/terranote/internal/domain"
)

func (h *Handler) handleSessions(c *fiber.Ctx) error {
	sessions := h.sessions.Active()
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(fiber.Map{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"sessions": h.sessions.Len(),
		"ttl":      h.sessions.TTL().String(),
		"uptime":   time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}
