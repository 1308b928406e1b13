package model

import "time"

// GenerationParameters controls a mesh generation run.
type GenerationParameters struct {
	InferenceSteps   int            `json:"inference_steps" validate:"omitempty,gte=5,lte=100"`
	GuidanceScale    float64        `json:"guidance_scale" validate:"omitempty,gte=1,lte=15"`
	OctreeResolution int            `json:"octree_resolution" validate:"omitempty,oneof=128 256 384 512"`
	Seed             *int64         `json:"seed,omitempty" validate:"omitempty,gte=0"`
	GenerateTexture  bool           `json:"generate_texture"`
	FaceCount        *int           `json:"face_count,omitempty" validate:"omitempty,gte=100,lte=1000000"`
	OutputFormat     OutputFormat   `json:"output_format" validate:"omitempty,oneof=glb obj ply stl"`
	Mode             GenerationMode `json:"mode" validate:"omitempty,oneof=fast standard quality"`
}

// DefaultGenerationParameters mirrors the backend defaults.
func DefaultGenerationParameters() GenerationParameters {
	return GenerationParameters{
		InferenceSteps:   30,
		GuidanceScale:    5.5,
		OctreeResolution: 256,
		GenerateTexture:  true,
		OutputFormat:     OutputFormatGLB,
		Mode:             GenerationModeStandard,
	}
}

// GenerationRequest submits an image- or text-to-3D job.
type GenerationRequest struct {
	Type       string               `json:"type" validate:"required,oneof=image_to_3d text_to_3d"`
	Name       string               `json:"name,omitempty" validate:"omitempty,max=255"`
	Prompt     string               `json:"prompt,omitempty" validate:"omitempty,min=3,max=500"`
	ImagePath  string               `json:"image_path,omitempty"`
	Parameters GenerationParameters `json:"parameters"`
	ProjectID  string               `json:"project_id,omitempty"`
	Tags       []string             `json:"tags,omitempty"`
}

// GenerationResponse is returned when a generation job is accepted.
type GenerationResponse struct {
	JobID         string    `json:"job_id"`
	AssetID       string    `json:"asset_id"`
	Status        JobStatus `json:"status"`
	Message       string    `json:"message,omitempty"`
	QueuePosition int       `json:"queue_position"`
}

// JobStatusResponse is the poll-endpoint view of a job.
type JobStatusResponse struct {
	JobID       string     `json:"job_id"`
	AssetID     string     `json:"asset_id,omitempty"`
	Status      JobStatus  `json:"status"`
	Progress    float64    `json:"progress"`
	Stage       string     `json:"stage"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CancelResponse acknowledges a cancel request.
type CancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
}
