package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/set-night/terranote/internal/middleware"
)

// Webhook routes always answer 200 once the body was read, so the platform
// does not redeliver a message that was dropped or failed to publish.

func (h *Handler) handleTelegramWebhook(c *fiber.Ctx) error {
	ev, err := h.normalizer.Telegram(c.Body())
	if err != nil {
		slog.Warn("telegram update ignored",
			"request_id", middleware.RequestID(c),
			"error", err,
		)
		return c.JSON(ignored(err))
	}

	out, err := h.engine.Handle(c.UserContext(), ev)
	return c.JSON(newOutcomeResponse(out, err))
}

type whatsAppResponse struct {
	Status  string            `json:"status"`
	Results []outcomeResponse `json:"results"`
	Dropped []string          `json:"dropped,omitempty"`
}

func (h *Handler) handleWhatsAppWebhook(c *fiber.Ctx) error {
	result, err := h.normalizer.WhatsApp(c.Body())
	if err != nil {
		slog.Warn("whatsapp webhook ignored",
			"request_id", middleware.RequestID(c),
			"error", err,
		)
		return c.JSON(whatsAppResponse{Status: statusIgnored, Results: []outcomeResponse{}, Dropped: []string{err.Error()}})
	}

	resp := whatsAppResponse{Status: statusIgnored, Results: make([]outcomeResponse, 0, len(result.Events))}
	for _, dropped := range result.Dropped {
		slog.Warn("whatsapp message dropped",
			"request_id", middleware.RequestID(c),
			"error", dropped,
		)
		resp.Dropped = append(resp.Dropped, dropped.Error())
	}

	for _, ev := range result.Events {
		out, err := h.engine.Handle(c.UserContext(), ev)
		resp.Results = append(resp.Results, newOutcomeResponse(out, err))
	}
	if len(resp.Results) > 0 {
		resp.Status = statusAccepted
	}
	return c.JSON(resp)
}

// handleWhatsAppVerify answers the Cloud API subscription handshake.
func (h *Handler) handleWhatsAppVerify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || h.cfg.WhatsAppVerifyToken == "" || token != h.cfg.WhatsAppVerifyToken {
		slog.Warn("whatsapp verification rejected", "mode", mode)
		return fiber.NewError(fiber.StatusForbidden, "verification failed")
	}
	return c.SendString(challenge)
}
