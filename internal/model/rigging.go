package model

// RiggingRequest submits a mesh for automatic rigging.
type RiggingRequest struct {
	AssetID       string        `json:"asset_id" validate:"required"`
	CharacterType CharacterType `json:"character_type" validate:"omitempty,oneof=auto humanoid quadruped"`
}

// RiggingResponse is returned when a rigging job is accepted.
type RiggingResponse struct {
	JobID   string    `json:"job_id"`
	AssetID string    `json:"asset_id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message,omitempty"`
}

// RigResult describes a completed rig.
type RigResult struct {
	AssetID       string        `json:"asset_id"`
	CharacterType CharacterType `json:"character_type"`
	BoneCount     int           `json:"bone_count"`
	RiggedPath    string        `json:"rigged_mesh_path,omitempty"`
}
