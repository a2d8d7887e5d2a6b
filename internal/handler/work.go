package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tracklight/api/internal/middleware"
	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/progress"
	"github.com/tracklight/api/internal/repo"
	"github.com/tracklight/api/internal/service"
	"github.com/tracklight/api/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

var validAudioTypes = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
	"audio/aac":   true,
	"audio/x-aac": true,
	"audio/webm":  true,
}

var validImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

type WorkHandler struct {
	service   *service.WorkService
	validator *validator.Validate
}

func NewWorkHandler(svc *service.WorkService, v *validator.Validate) *WorkHandler {
	return &WorkHandler{service: svc, validator: v}
}

// Create handles POST /api/works
func (h *WorkHandler) Create(c *fiber.Ctx) error {
	var req model.CaptureWorkRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	work, err := h.service.Capture(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Created(c, work)
}

// List handles GET /api/works
func (h *WorkHandler) List(c *fiber.Ctx) error {
	works, err := h.service.List(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if works == nil {
		works = []*model.Work{}
	}
	return response.OK(c, fiber.Map{"works": works})
}

// Get handles GET /api/works/:id
func (h *WorkHandler) Get(c *fiber.Ctx) error {
	work, err := h.service.Get(c.Context(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return response.OK(c, work)
}

// Update handles PATCH /api/works/:id
func (h *WorkHandler) Update(c *fiber.Ctx) error {
	var req model.UpdateWorkRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	work, err := h.service.Update(c.Context(), middleware.GetUserID(c), c.Params("id"), &req)
	if err != nil {
		return h.mapError(c, err)
	}
	return response.OK(c, work)
}

// Delete handles DELETE /api/works/:id
func (h *WorkHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), middleware.GetUserID(c), c.Params("id")); err != nil {
		return h.mapError(c, err)
	}
	return response.NoContent(c)
}

// AttachAudio handles POST /api/works/:id/audio
func (h *WorkHandler) AttachAudio(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}
	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", fiber.Map{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}
	contentType := file.Header.Get("Content-Type")
	if !validAudioTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: WAV, MP3, M4A, AAC, WEBM", fiber.Map{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	work, job, err := h.service.AttachAudio(c.Context(), middleware.GetUserID(c), c.Params("id"), file.Filename, contentType, f)
	if err != nil {
		return h.mapError(c, err)
	}

	resp := fiber.Map{"work": work}
	if job != nil {
		resp["jobId"] = job.ID
	}
	return response.Accepted(c, resp)
}

// ClearAudio handles DELETE /api/works/:id/audio
func (h *WorkHandler) ClearAudio(c *fiber.Ctx) error {
	work, err := h.service.ClearAudio(c.Context(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return response.OK(c, work)
}

// AttachArtwork handles POST /api/works/:id/artwork
func (h *WorkHandler) AttachArtwork(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}
	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", nil)
	}
	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: PNG, JPEG, WEBP", fiber.Map{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	work, err := h.service.AttachArtwork(c.Context(), middleware.GetUserID(c), c.Params("id"), file.Filename, contentType, f)
	if err != nil {
		return h.mapError(c, err)
	}
	return response.Created(c, work)
}

// Progress handles GET /api/works/:id/progress
func (h *WorkHandler) Progress(c *fiber.Ctx) error {
	work, err := h.service.Get(c.Context(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return response.OK(c, fiber.Map{
		"progress": progress.Compute(work),
		"gate":     progress.Preflight(work),
	})
}

func (h *WorkHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repo.ErrWorkNotFound):
		return response.NotFound(c, "Work not found")
	case errors.Is(err, service.ErrConfirmationBlocked):
		return response.Conflict(c, "Cannot confirm metadata before categorization is complete")
	case errors.Is(err, service.ErrSubmissionBlocked):
		return response.Conflict(c, "Cannot submit before metadata is confirmed")
	default:
		return response.ServiceError(c, err.Error())
	}
}
