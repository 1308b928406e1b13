package model

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal returns true for statuses with no valid outgoing transition.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job types
const (
	JobTypeImageTo3D = "image_to_3d"
	JobTypeTextTo3D  = "text_to_3d"
	JobTypeRigging   = "rigging"
)

// Workflow stages, in pipeline order
type Stage string

const (
	StageUpload  Stage = "upload"
	StageMesh    Stage = "mesh"
	StageTexture Stage = "texture"
	StageRigging Stage = "rigging"
	StageExport  Stage = "export"
)

// StageOrder lists the workflow stages in progression order.
var StageOrder = []Stage{
	StageUpload, StageMesh, StageTexture, StageRigging, StageExport,
}

// Per-stage status
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusProcessing StageStatus = "processing"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusApproved   StageStatus = "approved"
	StageStatusSkipped    StageStatus = "skipped"
	StageStatusFailed     StageStatus = "failed"
)

// Generation quality modes
type GenerationMode string

const (
	GenerationModeFast     GenerationMode = "fast"
	GenerationModeStandard GenerationMode = "standard"
	GenerationModeQuality  GenerationMode = "quality"
)

// Output mesh formats
type OutputFormat string

const (
	OutputFormatGLB OutputFormat = "glb"
	OutputFormatOBJ OutputFormat = "obj"
	OutputFormatPLY OutputFormat = "ply"
	OutputFormatSTL OutputFormat = "stl"
)

// Character types for rigging
type CharacterType string

const (
	CharacterTypeAuto      CharacterType = "auto"
	CharacterTypeHumanoid  CharacterType = "humanoid"
	CharacterTypeQuadruped CharacterType = "quadruped"
)
