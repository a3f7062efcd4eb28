package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/onquest-api/internal/config"
	"github.com/noah-isme/onquest-api/internal/handler"
)

func TestHealthCheckHealthy(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "OnQuest", AppEnv: "test"}, handler.HealthProbe{
		Name:  "database",
		Check: func(context.Context) error { return nil },
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                   `json:"success"`
		Data    handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "ok", response.Data.Status)
	require.Equal(t, "OnQuest", response.Data.Service)
	require.Equal(t, "ok", response.Data.Checks["database"])
}

func TestHealthCheckDegraded(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "OnQuest"},
		handler.HealthProbe{Name: "database", Check: func(context.Context) error { return nil }},
		handler.HealthProbe{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var response struct {
		Success bool                   `json:"success"`
		Data    handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.False(t, response.Success)
	require.Equal(t, "degraded", response.Data.Status)
	require.Equal(t, "connection refused", response.Data.Checks["redis"])
	require.Equal(t, "ok", response.Data.Checks["database"])
}
