package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tracklight/api/internal/client"
	"github.com/tracklight/api/internal/config"
	"github.com/tracklight/api/internal/handler"
	"github.com/tracklight/api/internal/middleware"
	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/pipeline"
	"github.com/tracklight/api/internal/reconcile"
	"github.com/tracklight/api/internal/repo"
	"github.com/tracklight/api/internal/service"
	"github.com/tracklight/api/internal/worker"
	ws "github.com/tracklight/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients. Both fall back to deterministic local
	// output when unconfigured, so the server runs without credentials.
	groqClient := client.NewGroqClient(&cfg.Groq)
	var storage client.StorageClient
	if r2, err := client.NewR2Client(&cfg.R2); err != nil {
		log.Printf("Warning: R2 not configured, storing mock URLs: %v", err)
	} else {
		storage = r2
	}

	// Initialize persistence and pipeline
	works := repo.NewRedisWorkRepository(redisClient)
	jobStore := pipeline.NewRedisJobStore(redisClient)
	dispatcher := pipeline.NewDispatcher(jobStore, asynqClient)

	// Initialize services
	analyzer := service.NewSimulatedAnalyzer(cfg.Analysis.Seed)
	workService := service.NewWorkService(works, storage, dispatcher)
	analysisService := service.NewAnalysisService(works, analyzer, groqClient)
	artworkService := service.NewArtworkService(works, groqClient)
	augmentService := service.NewAugmentService(works, groqClient)

	// Status poller reconciles WebSocket observers with the persisted row
	// in case a worker notification was dropped.
	poller := reconcile.NewPoller(works, 10*time.Second)

	// Initialize handlers
	workHandler := handler.NewWorkHandler(workService, validate)
	stageHandler := handler.NewStageHandler(workService, analysisService, artworkService, augmentService, dispatcher)
	jobHandler := handler.NewJobHandler(dispatcher)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Work routes
	workGroup := api.Group("/works")
	workGroup.Post("/", workHandler.Create)
	workGroup.Get("/", workHandler.List)
	workGroup.Get("/:id", workHandler.Get)
	workGroup.Patch("/:id", workHandler.Update)
	workGroup.Delete("/:id", workHandler.Delete)
	workGroup.Get("/:id/progress", workHandler.Progress)

	// Blob routes
	workGroup.Post("/:id/audio", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), workHandler.AttachAudio)
	workGroup.Delete("/:id/audio", workHandler.ClearAudio)
	workGroup.Post("/:id/artwork", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), workHandler.AttachArtwork)

	// Stage triggers
	workGroup.Post("/:id/analyze", rateLimiter.AnalyzeLimit(cfg.RateLimit.AnalyzePerHour), stageHandler.Analyze)
	workGroup.Post("/:id/artwork-prompt", rateLimiter.AugmentLimit(cfg.RateLimit.AugmentPerHour), stageHandler.ArtworkPrompt)
	workGroup.Post("/:id/augment", rateLimiter.AugmentLimit(cfg.RateLimit.AugmentPerHour), stageHandler.Augment)
	workGroup.Post("/:id/describe", rateLimiter.AugmentLimit(cfg.RateLimit.AugmentPerHour), stageHandler.Describe)
	workGroup.Post("/:id/title", rateLimiter.TitleLimit(cfg.RateLimit.TitlePerMin), stageHandler.Title)

	// Job ledger routes
	api.Get("/jobs/:jobId", jobHandler.Get)
	api.Post("/jobs/:jobId/retry", jobHandler.Retry)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/works/:workId", websocket.New(func(c *websocket.Conn) {
		workID := c.Params("workId")

		pollCtx, cancel := context.WithCancel(context.Background())
		go func() {
			_ = poller.Watch(pollCtx, workID, func(w *model.Work) {
				switch w.Status {
				case model.StatusCompleted:
					hub.BroadcastComplete(w.ID, model.StageAnalysis, w)
				case model.StatusFailed:
					hub.BroadcastError(w.ID, "ANALYSIS_FAILED", "Analysis did not complete")
				}
			})
		}()

		hub.HandleConnection(c, workID)
		cancel()
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, analysisService, artworkService, dispatcher, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, analysisService *service.AnalysisService, artworkService *service.ArtworkService, dispatcher *pipeline.Dispatcher, hub *ws.Hub) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				string(model.StageAnalysis): 6,
				string(model.StageArtwork):  3,
			},
		},
	)

	// Create workers
	analysisWorker := worker.NewAnalysisWorker(analysisService, dispatcher, hub)
	artworkWorker := worker.NewArtworkWorker(artworkService, dispatcher, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(pipeline.TaskType(model.StageAnalysis), analysisWorker.ProcessTask)
	mux.HandleFunc(pipeline.TaskType(model.StageArtwork), artworkWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
