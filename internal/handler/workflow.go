package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/forge3d/realtime/internal/model"
	"github.com/forge3d/realtime/internal/service"
	"github.com/forge3d/realtime/pkg/response"
)

type WorkflowHandler struct {
	workflowService *service.WorkflowService
	assetService    *service.AssetService
	validator       *validator.Validate
}

func NewWorkflowHandler(wf *service.WorkflowService, assets *service.AssetService, v *validator.Validate) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: wf,
		assetService:    assets,
		validator:       v,
	}
}

// GetAsset handles GET /api/assets/:assetId
func (h *WorkflowHandler) GetAsset(c *fiber.Ctx) error {
	assetID := c.Params("assetId")
	if assetID == "" {
		return response.ValidationError(c, "Asset ID is required", nil)
	}

	asset, err := h.assetService.GetAsset(c.Context(), assetID)
	if err != nil {
		return response.NotFound(c, "Asset not found")
	}
	return response.OK(c, asset)
}

// Approve handles POST /api/workflow/:assetId/approve
func (h *WorkflowHandler) Approve(c *fiber.Ctx) error {
	assetID := c.Params("assetId")
	if assetID == "" {
		return response.ValidationError(c, "Asset ID is required", nil)
	}

	result, err := h.workflowService.Approve(c.Context(), assetID)
	if err != nil {
		if err.Error() == "asset not found" {
			return response.NotFound(c, "Asset not found")
		}
		return response.Conflict(c, err.Error())
	}
	return response.OK(c, result)
}

// SkipToExport handles POST /api/workflow/:assetId/skip-to-export
func (h *WorkflowHandler) SkipToExport(c *fiber.Ctx) error {
	assetID := c.Params("assetId")
	if assetID == "" {
		return response.ValidationError(c, "Asset ID is required", nil)
	}

	result, err := h.workflowService.SkipToExport(c.Context(), assetID)
	if err != nil {
		if err.Error() == "asset not found" {
			return response.NotFound(c, "Asset not found")
		}
		return response.Conflict(c, err.Error())
	}
	return response.OK(c, result)
}

// Advance handles POST /api/workflow/:assetId/advance
func (h *WorkflowHandler) Advance(c *fiber.Ctx) error {
	assetID := c.Params("assetId")
	if assetID == "" {
		return response.ValidationError(c, "Asset ID is required", nil)
	}

	var req model.AdvanceStageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.workflowService.Advance(c.Context(), assetID, req.ToStage)
	if err != nil {
		if err.Error() == "asset not found" {
			return response.NotFound(c, "Asset not found")
		}
		return response.ValidationError(c, err.Error(), nil)
	}
	return response.OK(c, result)
}
