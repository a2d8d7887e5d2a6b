package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tracklight/api/internal/middleware"
	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/pipeline"
	"github.com/tracklight/api/internal/repo"
	"github.com/tracklight/api/internal/service"
	"github.com/tracklight/api/pkg/response"
)

// StageHandler exposes the manual stage triggers. Every trigger recomputes
// from the currently persisted row, so re-invoking a stage that is already
// in flight is safe.
type StageHandler struct {
	works      *service.WorkService
	analysis   *service.AnalysisService
	artwork    *service.ArtworkService
	augment    *service.AugmentService
	dispatcher *pipeline.Dispatcher
}

func NewStageHandler(works *service.WorkService, analysis *service.AnalysisService, artwork *service.ArtworkService, augment *service.AugmentService, dispatcher *pipeline.Dispatcher) *StageHandler {
	return &StageHandler{
		works:      works,
		analysis:   analysis,
		artwork:    artwork,
		augment:    augment,
		dispatcher: dispatcher,
	}
}

// Analyze handles POST /api/works/:id/analyze — manual re-run of the
// analysis stage against the already-stored audio.
func (h *StageHandler) Analyze(c *fiber.Ctx) error {
	work, err := h.works.Get(c.Context(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	if !work.HasAudio() {
		return response.ValidationError(c, "Work has no audio to analyze", nil)
	}

	hint := work.IsImprovisation != nil && *work.IsImprovisation
	job, err := h.dispatcher.Dispatch(c.Context(), model.StageAnalysis, work.ID, model.AnalysisPayload{
		WorkID:              work.ID,
		StorageRef:          work.StoragePath,
		IsImprovisationHint: hint,
	})
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, model.AnalysisResponse{Success: true, JobID: job.ID})
}

// ArtworkPrompt handles POST /api/works/:id/artwork-prompt — synchronous
// regeneration, gated on the work having a name.
func (h *StageHandler) ArtworkPrompt(c *fiber.Ctx) error {
	work, err := h.works.Get(c.Context(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}

	result, err := h.artwork.Run(c.Context(), &model.ArtworkPayload{WorkID: work.ID})
	if err != nil {
		if errors.Is(err, service.ErrMissingArtworkInputs) {
			return response.ValidationError(c, "Work needs a name before artwork prompt generation", nil)
		}
		return h.mapError(c, err)
	}
	return response.OK(c, result)
}

// Augment handles POST /api/works/:id/augment — categorization plus
// description in one call.
func (h *StageHandler) Augment(c *fiber.Ctx) error {
	work, err := h.works.Get(c.Context(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}

	result, err := h.augment.Run(c.Context(), work.ID)
	if err != nil {
		if errors.Is(err, service.ErrMalformedModelOutput) {
			return response.AIError(c, err.Error())
		}
		return h.mapError(c, err)
	}
	return response.OK(c, result)
}

// Describe handles POST /api/works/:id/describe — description only.
func (h *StageHandler) Describe(c *fiber.Ctx) error {
	work, err := h.works.Get(c.Context(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}

	result, err := h.augment.Describe(c.Context(), work.ID)
	if err != nil {
		if errors.Is(err, service.ErrMalformedModelOutput) {
			return response.AIError(c, err.Error())
		}
		return h.mapError(c, err)
	}
	return response.OK(c, result)
}

// Title handles POST /api/works/:id/title — manual title regeneration.
func (h *StageHandler) Title(c *fiber.Ctx) error {
	work, err := h.works.Get(c.Context(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}

	title, err := h.analysis.GenerateTitle(c.Context(), work.ID)
	if err != nil {
		return response.AIError(c, err.Error())
	}
	return response.OK(c, model.TitleResponse{Title: title})
}

func (h *StageHandler) mapError(c *fiber.Ctx, err error) error {
	if errors.Is(err, repo.ErrWorkNotFound) {
		return response.NotFound(c, "Work not found")
	}
	return response.ServiceError(c, err.Error())
}
