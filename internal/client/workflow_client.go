package client

import (
	"context"
	"fmt"

	"github.com/forge3d/realtime/internal/model"
)

// The workflow endpoints mutate server-side asset state; the resulting
// stage changes also arrive as workflow_update broadcasts, so callers
// normally fold the channel event rather than the response body.

// GetAsset fetches one asset record.
func (c *BackendClient) GetAsset(ctx context.Context, assetID string) (*model.Asset, error) {
	endpoint := fmt.Sprintf("/api/assets/%s", assetID)
	var result model.Asset
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ApproveStage accepts the asset's current stage output on the server.
func (c *BackendClient) ApproveStage(ctx context.Context, assetID string) (*model.WorkflowActionResponse, error) {
	endpoint := fmt.Sprintf("/api/workflow/%s/approve", assetID)
	var result model.WorkflowActionResponse
	if err := c.post(ctx, endpoint, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SkipToExport jumps the asset past texture and rigging to export.
func (c *BackendClient) SkipToExport(ctx context.Context, assetID string) (*model.WorkflowActionResponse, error) {
	endpoint := fmt.Sprintf("/api/workflow/%s/skip-to-export", assetID)
	var result model.WorkflowActionResponse
	if err := c.post(ctx, endpoint, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AdvanceStage moves the asset to a specific backend stage.
func (c *BackendClient) AdvanceStage(ctx context.Context, assetID string, req *model.AdvanceStageRequest) (*model.WorkflowActionResponse, error) {
	endpoint := fmt.Sprintf("/api/workflow/%s/advance", assetID)
	var result model.WorkflowActionResponse
	if err := c.post(ctx, endpoint, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPipelineStatus fetches the backend resource snapshot.
func (c *BackendClient) GetPipelineStatus(ctx context.Context) (*model.PipelineStatus, error) {
	var result model.PipelineStatus
	if err := c.get(ctx, "/api/pipeline/status", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
