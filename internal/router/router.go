package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/onquest-api/internal/config"
	"github.com/noah-isme/onquest-api/internal/handler"
	"github.com/noah-isme/onquest-api/internal/middleware"
	"github.com/noah-isme/onquest-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	QuestHandler  *handler.QuestHandler
	MediaHandler  *handler.MediaHandler
	ChatHandler   *handler.ChatHandler
	JWTMiddleware fiber.Handler
	JoinLimiter   fiber.Handler
	HealthProbes  []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Itinerary editor and saved quests
	if deps.QuestHandler != nil || deps.MediaHandler != nil {
		quests := api.Group("/quests", jwtMiddleware, middleware.RequireIdentity())
		if deps.MediaHandler != nil {
			deps.MediaHandler.Register(quests)
		}
		if deps.QuestHandler != nil {
			deps.QuestHandler.Register(quests)
		}
	}

	// Conversations, messages and presence
	if deps.ChatHandler != nil {
		var joinGuards []fiber.Handler
		if deps.JoinLimiter != nil {
			joinGuards = append(joinGuards, deps.JoinLimiter)
		}
		deps.ChatHandler.Register(api.Group("/chats", jwtMiddleware, middleware.RequireIdentity()), joinGuards...)
		deps.ChatHandler.RegisterMessages(api.Group("/messages", jwtMiddleware, middleware.RequireIdentity()))
		deps.ChatHandler.RegisterPresence(api.Group("/presence", jwtMiddleware, middleware.RequireIdentity()))
	}
}
