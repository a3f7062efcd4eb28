package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/onquest-api/internal/middleware"
)

func correlationApp(seen *string) *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		*seen = middleware.CorrelationIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestCorrelationIDPropagatesHeader(t *testing.T) {
	var seen string
	app := correlationApp(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "trip-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "trip-42", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "trip-42", seen)
}

func TestCorrelationIDFromQuery(t *testing.T) {
	var seen string
	app := correlationApp(&seen)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/?correlation_id=ws-7", nil), -1)
	require.NoError(t, err)
	require.Equal(t, "ws-7", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "ws-7", seen)
}

func TestCorrelationIDGenerated(t *testing.T) {
	var seen string
	app := correlationApp(&seen)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	require.Equal(t, seen, resp.Header.Get("X-Correlation-ID"))
}

func TestRateLimitReturnsRetryAfter(t *testing.T) {
	app := fiber.New()
	app.Post("/join", middleware.RateLimit("chat_join", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/join", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/join", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
}
