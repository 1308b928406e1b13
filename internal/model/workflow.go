package model

// StageState is the local status of one workflow stage.
type StageState struct {
	Status StageStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
	JobID  string      `json:"jobId,omitempty"` // in-flight job for this stage
}

// WorkflowState is a read-only snapshot of the workflow machine.
type WorkflowState struct {
	IsActive      bool                 `json:"isActive"`
	ActiveAssetID string               `json:"activeAssetId,omitempty"`
	CurrentStage  Stage                `json:"currentStage"`
	Stages        map[Stage]StageState `json:"stages"`
}

// Backend workflow stage vocabulary (as broadcast in workflow_update events).
const (
	BackendStageUploaded        = "uploaded"
	BackendStageMeshGenerated   = "mesh_generated"
	BackendStageMeshApproved    = "mesh_approved"
	BackendStageTextured        = "textured"
	BackendStageTextureApproved = "texture_approved"
	BackendStageRigged          = "rigged"
	BackendStageExported        = "exported"
)

// Backend workflow status vocabulary.
const (
	BackendStatusStarted         = "started"
	BackendStatusProgress        = "progress"
	BackendStatusCompleted       = "completed"
	BackendStatusAdvanced        = "advanced"
	BackendStatusApproved        = "approved"
	BackendStatusFailed          = "failed"
	BackendStatusSkippedToExport = "skipped_to_export"
)
