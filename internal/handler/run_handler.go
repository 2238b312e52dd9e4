package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"quizforge/internal/domain"
	"quizforge/internal/dto"
	"quizforge/internal/logger"
	"quizforge/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// RunService is the orchestrator surface the handler depends on.
type RunService interface {
	Submit(req domain.GenerationRequest) (string, error)
	Cancel(runID string) error
	Subscribe(ctx context.Context, runID string) (<-chan domain.ProgressEvent, error)
	Result(ctx context.Context, runID string) (*domain.RunResult, error)
}

// RunHandler handles generation-run HTTP requests
type RunHandler struct {
	service RunService
}

// NewRunHandler creates a new RunHandler instance
func NewRunHandler(service RunService) *RunHandler {
	return &RunHandler{service: service}
}

// SubmitRun godoc
// @Summary Start a generation run
// @Description Validates the request and starts N concurrent set jobs. Returns the run ID before generation begins.
// @Tags runs
// @Accept json
// @Produce json
// @Param request body dto.SubmitRunRequest true "Run parameters"
// @Success 202 {object} dto.SubmitRunResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /runs [post]
func (h *RunHandler) SubmitRun(c *fiber.Ctx) error {
	var req dto.SubmitRunRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidRequestError("malformed request body")
	}

	user, _ := c.Locals(middleware.UserIDKey).(string)
	runID, err := h.service.Submit(req.ToDomain(user))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.SubmitRunResponse{RunID: runID})
}

// CancelRun godoc
// @Summary Cancel a run
// @Description Requests cooperative cancellation. Already-accepted sets keep their results.
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} dto.CancelRunResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /runs/{id} [delete]
func (h *RunHandler) CancelRun(c *fiber.Ctx) error {
	runID := c.Params("id")
	if err := h.service.Cancel(runID); err != nil {
		return err
	}
	return c.JSON(dto.CancelRunResponse{RunID: runID, Status: "cancelling"})
}

// GetResult godoc
// @Summary Fetch the final run result
// @Description Available only once the run is terminal; 409 while still running.
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} domain.RunResult
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /runs/{id}/result [get]
func (h *RunHandler) GetResult(c *fiber.Ctx) error {
	result, err := h.service.Result(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// StreamEvents godoc
// @Summary Stream run progress
// @Description Server-sent events: full backlog since run start, then live events until the run is terminal.
// @Tags runs
// @Produce text/event-stream
// @Param id path string true "Run ID"
// @Success 200 {string} string "SSE stream of ProgressEvent"
// @Failure 404 {object} middleware.ErrorResponse
// @Security ApiKeyAuth
// @Router /runs/{id}/events [get]
func (h *RunHandler) StreamEvents(c *fiber.Ctx) error {
	runID := c.Params("id")

	// Subscribe before taking over the response body so an unknown run
	// still surfaces as a regular 404 through the error handler.
	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.service.Subscribe(ctx, runID)
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				logger.Get().Error("Failed to marshal progress event",
					zap.String("run_id", runID), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			// Flush per event; an error means the client went away.
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}

// Health godoc
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (h *RunHandler) Health(c *fiber.Ctx) error {
	return c.JSON(dto.HealthResponse{Status: "ok"})
}
