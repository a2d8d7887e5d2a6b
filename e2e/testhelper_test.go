package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/tracklight/api/internal/client"
	"github.com/tracklight/api/internal/config"
	"github.com/tracklight/api/internal/handler"
	"github.com/tracklight/api/internal/middleware"
	"github.com/tracklight/api/internal/pipeline"
	"github.com/tracklight/api/internal/repo"
	"github.com/tracklight/api/internal/service"
	"github.com/tracklight/api/internal/worker"
	ws "github.com/tracklight/api/internal/websocket"
)

const testJWTSecret = "test-secret-for-e2e"

// captureEnqueuer records tasks in memory instead of talking to a broker, so
// tests drive the workers directly and deterministically.
type captureEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (e *captureEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
	return &asynq.TaskInfo{ID: "captured"}, nil
}

func (e *captureEnqueuer) drain() []*asynq.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := e.tasks
	e.tasks = nil
	return tasks
}

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	enq      *captureEnqueuer
	analysis *worker.AnalysisWorker
	artwork  *worker.ArtworkWorker
	auth     *middleware.AuthMiddleware
}

// setupApp builds a Fiber app wired like main.go but on in-memory stores,
// a capturing enqueuer and unconfigured external clients, so all services
// use their mock/fallback paths and no Redis is needed.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()

	groqClient := client.NewGroqClient(&config.GroqConfig{}) // no API key → local fallbacks
	// storage = nil → mock URLs

	works := repo.NewMemoryWorkRepository()
	enq := &captureEnqueuer{}
	dispatcher := pipeline.NewDispatcher(pipeline.NewMemoryJobStore(), enq)

	analyzer := service.NewSimulatedAnalyzer(42)
	workService := service.NewWorkService(works, nil, dispatcher)
	analysisService := service.NewAnalysisService(works, analyzer, groqClient)
	artworkService := service.NewArtworkService(works, groqClient)
	augmentService := service.NewAugmentService(works, groqClient)

	hub := ws.NewHub()
	go hub.Run()

	workHandler := handler.NewWorkHandler(workService, validate)
	stageHandler := handler.NewStageHandler(workService, analysisService, artworkService, augmentService, dispatcher)
	jobHandler := handler.NewJobHandler(dispatcher)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	workGroup := api.Group("/works")
	workGroup.Post("/", workHandler.Create)
	workGroup.Get("/", workHandler.List)
	workGroup.Get("/:id", workHandler.Get)
	workGroup.Patch("/:id", workHandler.Update)
	workGroup.Delete("/:id", workHandler.Delete)
	workGroup.Get("/:id/progress", workHandler.Progress)

	workGroup.Post("/:id/audio", workHandler.AttachAudio)
	workGroup.Delete("/:id/audio", workHandler.ClearAudio)
	workGroup.Post("/:id/artwork", workHandler.AttachArtwork)

	workGroup.Post("/:id/analyze", stageHandler.Analyze)
	workGroup.Post("/:id/artwork-prompt", stageHandler.ArtworkPrompt)
	workGroup.Post("/:id/augment", stageHandler.Augment)
	workGroup.Post("/:id/describe", stageHandler.Describe)
	workGroup.Post("/:id/title", stageHandler.Title)

	api.Get("/jobs/:jobId", jobHandler.Get)
	api.Post("/jobs/:jobId/retry", jobHandler.Retry)

	return &testApp{
		app:      app,
		enq:      enq,
		analysis: worker.NewAnalysisWorker(analysisService, dispatcher, hub),
		artwork:  worker.NewArtworkWorker(artworkService, dispatcher, hub),
		auth:     authMiddleware,
	}
}

// processQueued drains captured tasks through the workers until the queue is
// empty, following chained dispatches (analysis enqueues artwork).
func (ta *testApp) processQueued(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		tasks := ta.enq.drain()
		if len(tasks) == 0 {
			return
		}
		for _, task := range tasks {
			var err error
			switch task.Type() {
			case "stage:analysis":
				err = ta.analysis.ProcessTask(ctx, task)
			case "stage:artwork":
				err = ta.artwork.ProcessTask(ctx, task)
			default:
				t.Fatalf("unexpected task type %s", task.Type())
			}
			if err != nil {
				t.Fatalf("worker failed on %s: %v", task.Type(), err)
			}
		}
	}
	t.Fatal("task chain did not terminate")
}

// generateToken creates an HMAC JWT for test requests.
func generateToken(t *testing.T, ta *testApp) string {
	t.Helper()
	token, err := ta.auth.GenerateToken("test-user-123", "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest performs an HTTP request against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
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
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, ta *testApp, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t, ta)
	return doRequest(ta.app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
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

// parseJSON parses the response body into a map.
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
