package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"clipbot/internal/config"
	"clipbot/internal/database"
	"clipbot/internal/handlers"
	"clipbot/internal/jobs"
	"clipbot/internal/logging"
	"clipbot/internal/middleware"
	"clipbot/internal/services"
	"clipbot/internal/telegram"
)

// statsRetention keeps a month of daily counters before the prune job
// removes them
const statsRetention = 30 * 24 * time.Hour

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting clipbot server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	// Load configuration
	cfg := config.Load()
	if cfg.BotToken == "" {
		log.Fatal("❌ BOT_TOKEN environment variable is required")
	}
	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required")
	}
	if cfg.WebhookSecret == "" {
		log.Fatal("❌ WEBHOOK_SECRET environment variable is required")
	}
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// Initialize MongoDB
	log.Println("🔗 Connecting to MongoDB...")
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongoDB.Initialize(initCtx); err != nil {
		cancelInit()
		log.Fatalf("❌ Failed to initialize MongoDB indexes: %v", err)
	}
	cancelInit()
	log.Println("✅ MongoDB connected and indexes ensured")

	// Initialize Redis (suggestion sessions + webhook dedup)
	redisService, err := services.NewRedisService(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()
	log.Println("✅ Redis connected")

	// Telegram client
	tgClient := telegram.NewClient(cfg.BotToken)
	botCtx, cancelBot := context.WithTimeout(context.Background(), 15*time.Second)
	me, err := tgClient.GetMe(botCtx)
	cancelBot()
	if err != nil {
		log.Fatalf("❌ Telegram credentials rejected: %v", err)
	}
	log.Printf("🤖 Authorized as @%s (%d)", me.Username, me.ID)

	// Metrics
	metrics := services.InitMetrics()

	// Services
	movieService := services.NewMovieService(mongoDB)
	roomService := services.NewRoomService(mongoDB, metrics)
	lockService := services.NewLockService(mongoDB, cfg.LockTTL)
	tokenService := services.NewTokenService(mongoDB, cfg.TokenGateURL)
	userService := services.NewUserService(mongoDB)
	statsService := services.NewStatsService(mongoDB)
	sessionService := services.NewSessionService(redisService)
	maintenance := services.NewMaintenanceState()
	auditService := services.NewAuditService(tgClient, cfg.AuditChannelID)

	searchService := services.NewSearchService(movieService, sessionService, statsService, metrics)

	deliveryService := services.NewDeliveryService(roomService, lockService, tokenService, tgClient, services.DeliveryConfig{
		InviteTTL:       cfg.InviteTTL,
		ForceSubChannel: cfg.ForceSubChannel,
		ForceSubLink:    cfg.ForceSubLink,
	})
	deliveryService.SetBookkeeping(movieService, userService, statsService, auditService, maintenance, metrics)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(
		cfg, tgClient, searchService, deliveryService,
		movieService, roomService, userService, statsService,
		sessionService, maintenance, tokenService,
	)
	healthHandler := handlers.NewHealthHandler(mongoDB, redisService)

	// Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "clipbot v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // Telegram updates are small
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("clipbot")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Webhook=%d/min, Public=%d/min",
		rateLimitConfig.WebhookMax, rateLimitConfig.PublicReadMax)

	// Routes
	app.Post("/webhook/:secret", middleware.WebhookRateLimiter(rateLimitConfig), webhookHandler.Handle)
	app.Get("/health", middleware.PublicReadRateLimiter(rateLimitConfig), healthHandler.Handle)

	// Background jobs
	jobScheduler := jobs.NewJobScheduler()
	jobScheduler.Register("room_janitor",
		jobs.NewRoomJanitorJob(roomService, auditService, cfg.RoomStuckAfter, cfg.JanitorInterval))
	if pruneJob, err := jobs.NewStatsPruneJob(statsService, statsRetention); err != nil {
		log.Printf("⚠️  Stats prune job disabled: %v", err)
	} else {
		jobScheduler.Register("stats_prune", pruneJob)
	}
	if err := jobScheduler.Start(); err != nil {
		log.Printf("⚠️  Failed to start job scheduler: %v", err)
	} else {
		log.Println("✅ Background job scheduler started")
	}

	// Register the webhook with Telegram
	if cfg.WebhookURL != "" {
		hookCtx, cancelHook := context.WithTimeout(context.Background(), 15*time.Second)
		hookURL := fmt.Sprintf("%s/webhook/%s", cfg.WebhookURL, cfg.WebhookSecret)
		if err := tgClient.SetWebhook(hookCtx, hookURL); err != nil {
			cancelHook()
			log.Fatalf("❌ Failed to register webhook: %v", err)
		}
		cancelHook()
		log.Printf("🔗 Webhook registered at %s/webhook/<secret>", cfg.WebhookURL)
	} else {
		log.Println("⚠️  WEBHOOK_URL not set, skipping webhook registration")
	}

	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🕐 Background jobs: room janitor (every %s), stats prune (daily, midnight UTC)", cfg.JanitorInterval)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop inbound updates first; Telegram queues them and redelivers
		// once the next instance re-registers.
		if cfg.WebhookURL != "" {
			dropCtx, cancelDrop := context.WithTimeout(context.Background(), 10*time.Second)
			if err := tgClient.DeleteWebhook(dropCtx); err != nil {
				log.Printf("⚠️ Failed to unregister webhook: %v", err)
			}
			cancelDrop()
		}

		jobScheduler.Stop()

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️ Error during shutdown: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}

	log.Println("👋 Server stopped")
}
