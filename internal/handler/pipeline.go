package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/forge3d/realtime/internal/service"
	"github.com/forge3d/realtime/pkg/response"
)

type PipelineHandler struct {
	pipelineService *service.PipelineService
}

func NewPipelineHandler(pipeline *service.PipelineService) *PipelineHandler {
	return &PipelineHandler{pipelineService: pipeline}
}

// Status handles GET /api/pipeline/status
func (h *PipelineHandler) Status(c *fiber.Ctx) error {
	return response.OK(c, h.pipelineService.Status())
}
