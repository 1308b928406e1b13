package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
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

	"github.com/forge3d/realtime/internal/config"
	"github.com/forge3d/realtime/internal/handler"
	"github.com/forge3d/realtime/internal/model"
	"github.com/forge3d/realtime/internal/service"
	"github.com/forge3d/realtime/internal/worker"
	ws "github.com/forge3d/realtime/internal/websocket"
)

// Simulated GPU size for the pipeline gauge.
const simulatedVRAMGB = 24.0

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

	// Initialize services
	generationService := service.NewGenerationService(redisClient, asynqClient)
	assetService := service.NewAssetService(redisClient)
	workflowService := service.NewWorkflowService(assetService, hub)
	pipelineService := service.NewPipelineService(hub, simulatedVRAMGB)

	hub.SetStatusProvider(func() model.QueueStatus {
		qs, err := generationService.QueueStatus(context.Background())
		if err != nil {
			log.Printf("Failed to compute queue status: %v", err)
			return model.QueueStatus{}
		}
		return qs
	})

	// Initialize handlers
	generateHandler := handler.NewGenerateHandler(generationService, assetService, hub, validate)
	riggingHandler := handler.NewRiggingHandler(generationService, assetService, hub, validate)
	workflowHandler := handler.NewWorkflowHandler(workflowService, assetService, validate)
	pipelineHandler := handler.NewPipelineHandler(pipelineService)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB uploads
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis": redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// API routes
	api := app.Group("/api")

	api.Post("/generate", generateHandler.Generate)
	api.Get("/jobs/:jobId", generateHandler.Status)
	api.Post("/jobs/:jobId/cancel", generateHandler.Cancel)

	api.Post("/rig", riggingHandler.Rig)

	api.Get("/assets/:assetId", workflowHandler.GetAsset)
	api.Post("/workflow/:assetId/approve", workflowHandler.Approve)
	api.Post("/workflow/:assetId/skip-to-export", workflowHandler.SkipToExport)
	api.Post("/workflow/:assetId/advance", workflowHandler.Advance)

	api.Get("/pipeline/status", pipelineHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/progress", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, generationService, assetService, pipelineService, hub)

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

func startWorkerServer(
	cfg *config.Config,
	generationService *service.GenerationService,
	assetService *service.AssetService,
	pipelineService *service.PipelineService,
	hub *ws.Hub,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Generation owns the GPU, so it runs one job at a time;
			// rigging is CPU-bound and can overlap.
			Concurrency: 2,
			Queues: map[string]int{
				"generation": 6,
				"rigging":    4,
			},
			LogLevel: asynqLogLevel,
		},
	)

	generationWorker := worker.NewGenerationWorker(generationService, assetService, pipelineService, hub)
	riggingWorker := worker.NewRiggingWorker(generationService, assetService, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeGeneration, generationWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeRigging, riggingWorker.ProcessTask)

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
