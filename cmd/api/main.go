package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/onquest-api/internal/config"
	"github.com/noah-isme/onquest-api/internal/database"
	"github.com/noah-isme/onquest-api/internal/handler"
	"github.com/noah-isme/onquest-api/internal/middleware"
	"github.com/noah-isme/onquest-api/internal/observability"
	"github.com/noah-isme/onquest-api/internal/realtime"
	"github.com/noah-isme/onquest-api/internal/repository"
	"github.com/noah-isme/onquest-api/internal/router"
	"github.com/noah-isme/onquest-api/internal/service"
	"github.com/noah-isme/onquest-api/pkg/ai"
	cloud "github.com/noah-isme/onquest-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	feed := realtime.NewFeed(redisClient, natsConn, cfg.RealtimeChannel, logger)
	feed.Start(feedCtx)

	storage, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	var assistant ai.Assistant
	if cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAIAssistant(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create assistant: %v", err)
		}
		assistant = openAI
	} else {
		logger.Warn().Msg("openai api key missing, assistant replies disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	tripRepo := repository.NewTripRepository(db)
	draftRepo := repository.NewDraftRepository(redisClient, cfg.RealtimeChannel, cfg.DraftTTL)

	mediaService := service.NewMediaService(storage, tripRepo, cfg.UploadMaxSizeMB, logger)
	questService := service.NewQuestService(draftRepo, tripRepo, userRepo, mediaService, validate, logger)
	chatService := service.NewChatService(service.ChatServiceDeps{
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Users:         userRepo,
		Media:         mediaService,
		Assistant:     assistant,
		Publisher:     feed,
	}, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes()) * 4,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		QuestHandler:  handler.NewQuestHandler(questService, logger),
		MediaHandler:  handler.NewMediaHandler(mediaService, logger),
		ChatHandler:   handler.NewChatHandler(chatService, feed, validate, logger),
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
		JoinLimiter:   middleware.RateLimit("chat_join", cfg.JoinRateLimit, time.Minute),
		HealthProbes: []handler.HealthProbe{
			{Name: "database", Check: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}},
			{Name: "redis", Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		},
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
