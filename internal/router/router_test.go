package router_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/onquest-api/internal/config"
	"github.com/noah-isme/onquest-api/internal/handler"
	"github.com/noah-isme/onquest-api/internal/middleware"
	"github.com/noah-isme/onquest-api/internal/router"
	"github.com/noah-isme/onquest-api/internal/service"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	router.Register(app, config.Config{AppName: "OnQuest"}, router.Dependencies{
		QuestHandler:  handler.NewQuestHandler(service.QuestService(nil), logger),
		MediaHandler:  handler.NewMediaHandler(service.MediaService(nil), logger),
		ChatHandler:   handler.NewChatHandler(service.ChatService(nil), nil, validator.New(), logger),
		JWTMiddleware: middleware.JWTProtected("secret"),
	})
	return app
}

func TestRegisterExposesPublicEndpoints(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "OnQuest", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRegisterProtectsDomainRoutes(t *testing.T) {
	app := setupApp(t)

	for _, target := range []string{"/api/v1/quests/drafts", "/api/v1/chats/groups", "/api/v1/messages/m1/reactions"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, target, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, target)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chats", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
