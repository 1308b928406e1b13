package service

import (
	"context"
	"fmt"

	"github.com/forge3d/realtime/internal/model"
	ws "github.com/forge3d/realtime/internal/websocket"
)

// WorkflowService applies stage transitions to assets and broadcasts
// the resulting workflow_update events.
type WorkflowService struct {
	assets *AssetService
	hub    *ws.Hub
}

func NewWorkflowService(assets *AssetService, hub *ws.Hub) *WorkflowService {
	return &WorkflowService{assets: assets, hub: hub}
}

// approvable maps a stage awaiting review to its approved form and the
// stage the workflow moves to next.
var approvable = map[string]struct {
	approved string
	next     string
}{
	model.BackendStageMeshGenerated: {model.BackendStageMeshApproved, "texture"},
	model.BackendStageTextured:      {model.BackendStageTextureApproved, "rigging"},
	model.BackendStageRigged:        {model.BackendStageRigged, "export"},
}

// Approve accepts an asset's current stage output.
func (s *WorkflowService) Approve(ctx context.Context, assetID string) (*model.WorkflowActionResponse, error) {
	asset, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	target, ok := approvable[asset.WorkflowStage]
	if !ok {
		return nil, fmt.Errorf("stage %s cannot be approved", asset.WorkflowStage)
	}

	if _, err := s.assets.SetStage(ctx, assetID, target.approved); err != nil {
		return nil, err
	}
	s.hub.BroadcastWorkflowUpdate(assetID, target.approved, model.BackendStatusApproved, "")

	return &model.WorkflowActionResponse{
		Success:       true,
		AssetID:       assetID,
		ApprovedStage: target.approved,
		NextStage:     target.next,
	}, nil
}

// SkipToExport approves the asset's current stage and jumps past the
// remaining intermediate stages.
func (s *WorkflowService) SkipToExport(ctx context.Context, assetID string) (*model.WorkflowActionResponse, error) {
	asset, err := s.assets.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	stage := asset.WorkflowStage
	skipped := []string{}
	switch stage {
	case model.BackendStageMeshGenerated, model.BackendStageMeshApproved:
		stage = model.BackendStageMeshApproved
		skipped = []string{"texture", "rigging"}
	case model.BackendStageTextured, model.BackendStageTextureApproved:
		stage = model.BackendStageTextureApproved
		skipped = []string{"rigging"}
	default:
		return nil, fmt.Errorf("cannot skip to export from stage %s", stage)
	}

	if _, err := s.assets.SetStage(ctx, assetID, stage); err != nil {
		return nil, err
	}
	s.hub.BroadcastWorkflowUpdate(assetID, stage, model.BackendStatusSkippedToExport, "")

	return &model.WorkflowActionResponse{
		Success:       true,
		AssetID:       assetID,
		NewStage:      stage,
		NextStage:     "export",
		SkippedStages: skipped,
	}, nil
}

var knownStages = map[string]bool{
	model.BackendStageUploaded:        true,
	model.BackendStageMeshGenerated:   true,
	model.BackendStageMeshApproved:    true,
	model.BackendStageTextured:        true,
	model.BackendStageTextureApproved: true,
	model.BackendStageRigged:          true,
	model.BackendStageExported:        true,
}

// Advance moves an asset to an explicit backend stage, used by the UI
// when redoing or fast-forwarding work.
func (s *WorkflowService) Advance(ctx context.Context, assetID, toStage string) (*model.WorkflowActionResponse, error) {
	if !knownStages[toStage] {
		return nil, fmt.Errorf("unknown stage %s", toStage)
	}

	if _, err := s.assets.SetStage(ctx, assetID, toStage); err != nil {
		return nil, err
	}
	s.hub.BroadcastWorkflowUpdate(assetID, toStage, model.BackendStatusAdvanced, "")

	return &model.WorkflowActionResponse{
		Success:  true,
		AssetID:  assetID,
		NewStage: toStage,
	}, nil
}
