package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quizforge/internal/domain"
	"quizforge/internal/dto"
	"quizforge/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	submit    func(req domain.GenerationRequest) (string, error)
	cancel    func(runID string) error
	subscribe func(ctx context.Context, runID string) (<-chan domain.ProgressEvent, error)
	result    func(ctx context.Context, runID string) (*domain.RunResult, error)
}

func (s *stubService) Submit(req domain.GenerationRequest) (string, error) { return s.submit(req) }
func (s *stubService) Cancel(runID string) error                           { return s.cancel(runID) }
func (s *stubService) Subscribe(ctx context.Context, runID string) (<-chan domain.ProgressEvent, error) {
	return s.subscribe(ctx, runID)
}
func (s *stubService) Result(ctx context.Context, runID string) (*domain.RunResult, error) {
	return s.result(ctx, runID)
}

func newTestApp(service RunService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	h := NewRunHandler(service)
	app.Get("/api/health", h.Health)
	runs := app.Group("/api/runs")
	runs.Post("/", h.SubmitRun)
	runs.Get("/:id/events", h.StreamEvents)
	runs.Get("/:id/result", h.GetResult)
	runs.Delete("/:id", h.CancelRun)
	return app
}

func TestSubmitRun(t *testing.T) {
	var captured domain.GenerationRequest
	service := &stubService{
		submit: func(req domain.GenerationRequest) (string, error) {
			captured = req
			return "01HRUNID", nil
		},
	}
	app := newTestApp(service)

	body, _ := json.Marshal(dto.SubmitRunRequest{
		Topic:           "Go concurrency",
		QuestionsPerSet: 5,
		NumSets:         3,
		Difficulty:      "hard",
	})
	req := httptest.NewRequest("POST", "/api/runs/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var out dto.SubmitRunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "01HRUNID", out.RunID)
	assert.Equal(t, "Go concurrency", captured.Topic)
	assert.Equal(t, domain.Difficulty("hard"), captured.Difficulty)
}

func TestSubmitRunInvalid(t *testing.T) {
	service := &stubService{
		submit: func(req domain.GenerationRequest) (string, error) {
			return "", domain.NewInvalidRequestError("num_sets must be positive")
		},
	}
	app := newTestApp(service)

	req := httptest.NewRequest("POST", "/api/runs/", strings.NewReader(`{"topic":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var out middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, string(domain.ErrCodeInvalidRequest), out.Code)
}

func TestCancelRun(t *testing.T) {
	service := &stubService{
		cancel: func(runID string) error {
			assert.Equal(t, "01HRUNID", runID)
			return nil
		},
	}
	app := newTestApp(service)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/runs/01HRUNID", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out dto.CancelRunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "01HRUNID", out.RunID)
	assert.Equal(t, "cancelling", out.Status)
}

func TestCancelUnknownRun(t *testing.T) {
	service := &stubService{
		cancel: func(runID string) error {
			return domain.NewRunNotFoundError(runID)
		},
	}
	app := newTestApp(service)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/api/runs/unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetResult(t *testing.T) {
	service := &stubService{
		result: func(_ context.Context, runID string) (*domain.RunResult, error) {
			return &domain.RunResult{
				RunID:         runID,
				Status:        domain.RunStatusCompleted,
				AcceptedCount: 2,
			}, nil
		},
	}
	app := newTestApp(service)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/runs/01HRUNID/result", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out domain.RunResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "01HRUNID", out.RunID)
	assert.Equal(t, domain.RunStatusCompleted, out.Status)
}

func TestGetResultWhileRunning(t *testing.T) {
	service := &stubService{
		result: func(_ context.Context, runID string) (*domain.RunResult, error) {
			return nil, domain.NewRunNotTerminalError(runID)
		},
	}
	app := newTestApp(service)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/runs/01HRUNID/result", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestStreamEventsUnknownRun(t *testing.T) {
	service := &stubService{
		subscribe: func(_ context.Context, runID string) (<-chan domain.ProgressEvent, error) {
			return nil, domain.NewRunNotFoundError(runID)
		},
	}
	app := newTestApp(service)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/runs/unknown/events", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestStreamEventsDeliversSSE(t *testing.T) {
	events := make(chan domain.ProgressEvent, 3)
	events <- domain.ProgressEvent{RunID: "01HRUNID", SetIndex: 0, Kind: domain.EventSetStarted}
	events <- domain.ProgressEvent{RunID: "01HRUNID", SetIndex: 0, Kind: domain.EventSetAccepted}
	events <- domain.ProgressEvent{RunID: "01HRUNID", SetIndex: domain.RunLevel, Kind: domain.EventRunCompleted, Progress: 100}
	close(events)

	service := &stubService{
		subscribe: func(_ context.Context, _ string) (<-chan domain.ProgressEvent, error) {
			return events, nil
		},
	}
	app := newTestApp(service)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/runs/01HRUNID/events", nil), int(5*time.Second/time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var kinds []domain.EventKind
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []domain.EventKind{
		domain.EventSetStarted,
		domain.EventSetAccepted,
		domain.EventRunCompleted,
	}, kinds)
}

func TestHealth(t *testing.T) {
	app := newTestApp(&stubService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out dto.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out.Status)
}
