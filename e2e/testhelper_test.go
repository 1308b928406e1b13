package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/forge3d/realtime/internal/handler"
	"github.com/forge3d/realtime/internal/model"
	"github.com/forge3d/realtime/internal/service"
	ws "github.com/forge3d/realtime/internal/websocket"
)

// testApp holds all components needed for testing.
type testApp struct {
	app               *fiber.App
	hub               *ws.Hub
	generationService *service.GenerationService
	assetService      *service.AssetService
	pipelineService   *service.PipelineService
}

// skipIfNoRedis skips tests that need a live Redis on localhost.
func skipIfNoRedis(t *testing.T) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
}

// setupApp creates a Fiber app identical to main.go, minus the Asynq
// worker server: jobs are enqueued but never run, which keeps their
// state deterministic for the API assertions.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// DB 15 keeps test keys away from a dev server on the same Redis.
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { redisClient.Close() })

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	generationService := service.NewGenerationService(redisClient, asynqClient)
	assetService := service.NewAssetService(redisClient)
	workflowService := service.NewWorkflowService(assetService, hub)
	pipelineService := service.NewPipelineService(hub, 24)

	hub.SetStatusProvider(func() model.QueueStatus {
		qs, _ := generationService.QueueStatus(context.Background())
		return qs
	})

	generateHandler := handler.NewGenerateHandler(generationService, assetService, hub, validate)
	riggingHandler := handler.NewRiggingHandler(generationService, assetService, hub, validate)
	workflowHandler := handler.NewWorkflowHandler(workflowService, assetService, validate)
	pipelineHandler := handler.NewPipelineHandler(pipelineService)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

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

	return &testApp{
		app:               app,
		hub:               hub,
		generationService: generationService,
		assetService:      assetService,
		pipelineService:   pipelineService,
	}
}

// doRequest performs an HTTP request against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses a response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
