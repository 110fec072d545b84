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

	"github.com/stemscribe/api/internal/config"
	"github.com/stemscribe/api/internal/handler"
	"github.com/stemscribe/api/internal/middleware"
	"github.com/stemscribe/api/internal/pipeline"
	"github.com/stemscribe/api/internal/service"
	"github.com/stemscribe/api/internal/storage"
	"github.com/stemscribe/api/internal/store"
	"github.com/stemscribe/api/internal/tool"
	"github.com/stemscribe/api/internal/worker"
	ws "github.com/stemscribe/api/internal/websocket"
	"github.com/stemscribe/api/pkg/response"
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

	// Initialize stores and tool adapters
	jobStore := store.NewRedisStore(redisClient, cfg.Jobs.Retention())

	uploads, err := storage.NewLocalStorage(cfg.Storage.UploadsDir)
	if err != nil {
		log.Fatalf("Failed to initialize uploads storage: %v", err)
	}

	executor := tool.NewExecutor()
	separator := tool.NewSeparator(cfg.Tools.DemucsBin, cfg.Tools.DemucsModel, executor)
	transcriber := tool.NewTranscriber(cfg.Tools.BasicPitchBin, executor)
	notation := tool.NewNotationExporter(cfg.Tools.MuseScoreBin, executor)

	pipe := pipeline.New(jobStore, separator, transcriber, notation, cfg.Storage.WorkDir, hub)

	// Initialize services and handlers
	jobService := service.NewJobService(jobStore, uploads, asynqClient, cfg.Storage.WorkDir)
	jobHandler := handler.NewJobHandler(jobService, validate)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Liveness
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Audio to MIDI Converter API"})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")
	if cfg.Auth.Secret != "" {
		authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.Secret)
		api.Use(authMiddleware.Authenticate())
	}

	api.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), jobHandler.Upload)
	api.Get("/status/:jobId", jobHandler.Status)
	api.Get("/download/:jobId", jobHandler.Download)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, pipe)

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

func startWorkerServer(cfg *config.Config, pipe *pipeline.Pipeline) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// external tools are CPU/GPU-bound; keep the pool small
			Concurrency: cfg.Jobs.Concurrency,
			Queues: map[string]int{
				service.QueuePipeline: 10,
			},
		},
	)

	pipelineWorker := worker.NewPipelineWorker(pipe)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePipeline, pipelineWorker.ProcessTask)

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

	return c.Status(code).JSON(response.ErrorResponse{
		Error: response.ErrorDetail{
			Code:    response.CodeServiceError,
			Message: message,
		},
	})
}
