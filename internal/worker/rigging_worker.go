package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/forge3d/realtime/internal/model"
	"github.com/forge3d/realtime/internal/service"
	"github.com/forge3d/realtime/internal/websocket"
)

// Skeleton sizes produced by the simulated auto-rigger.
const (
	humanoidBoneCount  = 65
	quadrupedBoneCount = 45
)

// RiggingWorker processes rigging jobs with a scripted run through the
// auto-rigging stages.
type RiggingWorker struct {
	generationService *service.GenerationService
	assetService      *service.AssetService
	hub               *websocket.Hub
}

// NewRiggingWorker creates a new rigging worker.
func NewRiggingWorker(
	generationService *service.GenerationService,
	assetService *service.AssetService,
	hub *websocket.Hub,
) *RiggingWorker {
	return &RiggingWorker{
		generationService: generationService,
		assetService:      assetService,
		hub:               hub,
	}
}

// ProcessTask handles one rigging task.
func (w *RiggingWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var envelope taskEnvelope
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := envelope.JobID
	log.Printf("Starting rigging job: %s", jobID)

	var req model.RiggingRequest
	if err := json.Unmarshal(envelope.Payload, &req); err != nil {
		w.failJob(ctx, jobID, "", "Invalid payload")
		return fmt.Errorf("failed to unmarshal rigging payload: %w", err)
	}
	assetID := req.AssetID

	asset, err := w.assetService.GetAsset(ctx, assetID)
	if err != nil {
		w.failJob(ctx, jobID, assetID, "Asset not found")
		return err
	}
	if !asset.HasMesh {
		w.failJob(ctx, jobID, assetID, "Asset has no mesh to rig")
		return nil
	}

	// Auto detection resolves on the first analysis step.
	characterType := req.CharacterType
	if characterType == "" || characterType == model.CharacterTypeAuto {
		characterType = model.CharacterTypeHumanoid
	}
	boneCount := humanoidBoneCount
	if characterType == model.CharacterTypeQuadruped {
		boneCount = quadrupedBoneCount
	}

	steps := []struct {
		progress float64
		stage    string
		duration time.Duration
	}{
		{0.1, "analyzing", 1 * time.Second},
		{0.35, "skeleton", 2 * time.Second},
		{0.7, "skinning", 2 * time.Second},
		{0.95, "finalizing", 1 * time.Second},
	}

	for _, step := range steps {
		if w.generationService.IsCancelled(ctx, jobID) {
			log.Printf("Rigging job %s cancelled", jobID)
			return nil
		}

		if err := w.generationService.UpdateJobProgress(ctx, jobID, step.progress, step.stage); err != nil {
			log.Printf("Failed to update progress for %s: %v", jobID, err)
		}
		w.hub.BroadcastRiggingProgress(jobID, assetID, step.progress, step.stage, string(characterType))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step.duration):
		}
	}

	riggedPath := fmt.Sprintf("/meshes/%s_rigged.glb", assetID)
	if err := w.assetService.MarkRigged(ctx, assetID, riggedPath); err != nil {
		w.failJob(ctx, jobID, assetID, "Failed to save rig")
		return err
	}

	result := model.RigResult{
		AssetID:       assetID,
		CharacterType: characterType,
		BoneCount:     boneCount,
		RiggedPath:    riggedPath,
	}
	if err := w.generationService.CompleteJob(ctx, jobID, result); err != nil {
		w.failJob(ctx, jobID, assetID, "Failed to save result")
		return err
	}

	w.hub.BroadcastRiggingComplete(jobID, assetID, characterType, boneCount)
	w.hub.BroadcastWorkflowUpdate(assetID, model.BackendStageRigged, model.BackendStatusCompleted, "")

	qs, err := w.generationService.QueueStatus(ctx)
	if err == nil {
		w.hub.BroadcastQueueStatus(qs)
	}

	log.Printf("Rigging job %s completed (%s, %d bones)", jobID, characterType, boneCount)
	return nil
}

func (w *RiggingWorker) failJob(ctx context.Context, jobID, assetID, errMsg string) {
	if err := w.generationService.FailJob(ctx, jobID, errMsg); err != nil {
		log.Printf("Failed to mark job %s as failed: %v", jobID, err)
	}
	w.hub.BroadcastRiggingFailed(jobID, assetID, errMsg)
}
