package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tracklight/api/internal/pipeline"
	"github.com/tracklight/api/pkg/response"
)

// JobHandler exposes the dispatch ledger for inspection and manual retry.
type JobHandler struct {
	dispatcher *pipeline.Dispatcher
}

func NewJobHandler(dispatcher *pipeline.Dispatcher) *JobHandler {
	return &JobHandler{dispatcher: dispatcher}
}

// Get handles GET /api/jobs/:jobId
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, err := h.dispatcher.GetJob(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, job)
}

// Retry handles POST /api/jobs/:jobId/retry
func (h *JobHandler) Retry(c *fiber.Ctx) error {
	job, err := h.dispatcher.Retry(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if job != nil {
			return response.ServiceError(c, err.Error())
		}
		return response.ValidationError(c, err.Error(), nil)
	}
	return response.Accepted(c, job)
}
