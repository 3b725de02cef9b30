package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Logging(), Recover())
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("boom")
	})
	return app
}

func TestLogging_AssignsRequestID(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestLogging_KeepsIncomingRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc-123")

	resp, err := newApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestRecover_TurnsPanicInto500(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest("GET", "/panic", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
