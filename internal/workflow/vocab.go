package workflow

import "github.com/forge3d/realtime/internal/model"

// The backend names workflow positions after the artifact they produced
// (mesh_generated, texture_approved, ...) while the UI names them after
// the activity (mesh, texture, ...). These maps translate the backend
// vocabulary into local terms; unknown values fall back to the earliest
// stage and the weakest status so a new backend term can never wedge
// the machine.

// MapStage translates a backend workflow stage name to the local stage.
func MapStage(backend string) model.Stage {
	switch backend {
	case model.BackendStageUploaded:
		return model.StageUpload
	case model.BackendStageMeshGenerated, model.BackendStageMeshApproved:
		return model.StageMesh
	case model.BackendStageTextured, model.BackendStageTextureApproved:
		return model.StageTexture
	case model.BackendStageRigged:
		return model.StageRigging
	case model.BackendStageExported:
		return model.StageExport
	default:
		return model.StageUpload
	}
}

// MapStatus translates a backend workflow status name to the local
// stage status.
func MapStatus(backend string) model.StageStatus {
	switch backend {
	case model.BackendStatusStarted, model.BackendStatusProgress:
		return model.StageStatusProcessing
	case model.BackendStatusCompleted, model.BackendStatusAdvanced:
		return model.StageStatusCompleted
	case model.BackendStatusApproved:
		return model.StageStatusApproved
	case model.BackendStatusFailed:
		return model.StageStatusFailed
	case model.BackendStatusSkippedToExport:
		return model.StageStatusSkipped
	default:
		return model.StageStatusPending
	}
}

// nextStage returns the stage after s in pipeline order. The final
// stage has no successor and returns itself.
func nextStage(s model.Stage) model.Stage {
	for i, stage := range model.StageOrder {
		if stage == s && i+1 < len(model.StageOrder) {
			return model.StageOrder[i+1]
		}
	}
	return s
}

// stageIndex returns the position of s in pipeline order.
func stageIndex(s model.Stage) int {
	for i, stage := range model.StageOrder {
		if stage == s {
			return i
		}
	}
	return 0
}
