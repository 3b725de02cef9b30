package handler

import "github.com/gofiber/fiber/v2"

// Register registers all routes on the router.
func (h *Handler) Register(r fiber.Router) {
	// Platform webhooks
	r.Post("/telegram/webhook", h.handleTelegramWebhook)
	r.Post("/webhook", h.handleWhatsAppWebhook)
	r.Get("/webhook", h.handleWhatsAppVerify)

	// Canonical ingestion
	r.Post("/v1/events", h.handleIngest)

	// Read side
	r.Get("/events", h.handleListEvents)
	r.Get("/sessions", h.handleSessions)
	r.Get("/health", h.handleHealth)
}
