package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
)

// Recover returns middleware that recovers from panics and turns them into
// a 500 handled by the app's error handler.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic recovered in handler",
					"panic", r,
					"path", c.Path(),
					"request_id", RequestID(c),
					"stack", string(debug.Stack()),
				)
				err = fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("internal error: %v", r))
			}
		}()
		return c.Next()
	}
}
