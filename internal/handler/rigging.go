package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/forge3d/realtime/internal/model"
	"github.com/forge3d/realtime/internal/service"
	ws "github.com/forge3d/realtime/internal/websocket"
	"github.com/forge3d/realtime/pkg/response"
)

type RiggingHandler struct {
	generationService *service.GenerationService
	assetService      *service.AssetService
	hub               *ws.Hub
	validator         *validator.Validate
}

func NewRiggingHandler(gen *service.GenerationService, assets *service.AssetService, hub *ws.Hub, v *validator.Validate) *RiggingHandler {
	return &RiggingHandler{
		generationService: gen,
		assetService:      assets,
		hub:               hub,
		validator:         v,
	}
}

// Rig handles POST /api/rig
func (h *RiggingHandler) Rig(c *fiber.Ctx) error {
	var req model.RiggingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	asset, err := h.assetService.GetAsset(c.Context(), req.AssetID)
	if err != nil {
		return response.NotFound(c, "Asset not found")
	}
	if !asset.HasMesh {
		return response.Conflict(c, "Asset has no mesh to rig")
	}

	result, err := h.generationService.SubmitRigging(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	h.hub.BroadcastJobCreated(result.JobID, result.AssetID, model.JobTypeRigging, 0)

	return response.Accepted(c, result)
}
