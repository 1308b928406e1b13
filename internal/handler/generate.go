package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/forge3d/realtime/internal/model"
	"github.com/forge3d/realtime/internal/service"
	ws "github.com/forge3d/realtime/internal/websocket"
	"github.com/forge3d/realtime/pkg/response"
)

type GenerateHandler struct {
	generationService *service.GenerationService
	assetService      *service.AssetService
	hub               *ws.Hub
	validator         *validator.Validate
}

func NewGenerateHandler(gen *service.GenerationService, assets *service.AssetService, hub *ws.Hub, v *validator.Validate) *GenerateHandler {
	return &GenerateHandler{
		generationService: gen,
		assetService:      assets,
		hub:               hub,
		validator:         v,
	}
}

// Generate handles POST /api/generate
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if req.Parameters == (model.GenerationParameters{}) {
		req.Parameters = model.DefaultGenerationParameters()
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if req.Type == model.JobTypeTextTo3D && req.Prompt == "" {
		return response.ValidationError(c, "Prompt is required for text_to_3d", nil)
	}
	if req.Type == model.JobTypeImageTo3D && req.ImagePath == "" {
		return response.ValidationError(c, "Image path is required for image_to_3d", nil)
	}

	name := req.Name
	if name == "" {
		name = "Untitled asset"
	}
	asset, err := h.assetService.CreateAsset(c.Context(), name)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	result, err := h.generationService.SubmitGeneration(c.Context(), &req, asset.ID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	h.hub.BroadcastJobCreated(result.JobID, result.AssetID, req.Type, result.QueuePosition)

	return response.Accepted(c, result)
}

// Status handles GET /api/jobs/:jobId
func (h *GenerateHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.generationService.GetStatus(c.Context(), jobID)
	if err != nil {
		if err.Error() == "job not found" {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/jobs/:jobId/cancel
func (h *GenerateHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.generationService.Cancel(c.Context(), jobID)
	if err != nil {
		switch err.Error() {
		case "job not found":
			return response.NotFound(c, "Job not found")
		case "job already finished":
			return response.Conflict(c, "Job already finished")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
