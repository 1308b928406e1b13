package model

import "time"

// Asset is the backend record for one generated asset.
type Asset struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WorkflowStage string    `json:"workflow_stage"` // backend vocabulary
	HasMesh       bool      `json:"has_mesh"`
	HasTexture    bool      `json:"has_texture"`
	IsRigged      bool      `json:"is_rigged"`
	MeshPath      string    `json:"mesh_path,omitempty"`
	TexturedPath  string    `json:"textured_path,omitempty"`
	RiggedPath    string    `json:"rigged_mesh_path,omitempty"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	DownloadURL   string    `json:"download_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AdvanceStageRequest moves an asset to a specific backend stage.
type AdvanceStageRequest struct {
	ToStage string `json:"to_stage" validate:"required"`
}

// WorkflowActionResponse acknowledges a workflow mutation.
type WorkflowActionResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message,omitempty"`
	AssetID       string   `json:"asset_id"`
	NewStage      string   `json:"new_stage,omitempty"`
	ApprovedStage string   `json:"approved_stage,omitempty"`
	NextStage     string   `json:"next_stage,omitempty"`
	SkippedStages []string `json:"skipped_stages,omitempty"`
}
