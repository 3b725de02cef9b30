package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/set-night/terranote/internal/config"
	"github.com/set-night/terranote/internal/middleware"
)

// NewApp builds the fiber app serving h.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "terranote-core",
		BodyLimit:             config.MaxWebhookBodyBytes,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(middleware.Logging())
	app.Use(middleware.Recover())

	h.Register(app)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"path", c.Path(),
			"request_id", middleware.RequestID(c),
			"error", err,
		)
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
