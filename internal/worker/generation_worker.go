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

// GenerationWorker runs generation jobs against the simulated pipeline:
// scripted steps with real progress broadcasts, so clients see the same
// event stream production would produce.
type GenerationWorker struct {
	generationService *service.GenerationService
	assetService      *service.AssetService
	pipelineService   *service.PipelineService
	hub               *websocket.Hub
}

// NewGenerationWorker creates a new generation worker.
func NewGenerationWorker(
	generationService *service.GenerationService,
	assetService *service.AssetService,
	pipelineService *service.PipelineService,
	hub *websocket.Hub,
) *GenerationWorker {
	return &GenerationWorker{
		generationService: generationService,
		assetService:      assetService,
		pipelineService:   pipelineService,
		hub:               hub,
	}
}

type taskEnvelope struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// ProcessTask handles one generation task.
func (w *GenerationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var envelope taskEnvelope
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := envelope.JobID
	log.Printf("Starting generation job: %s", jobID)

	var req model.GenerationRequest
	if err := json.Unmarshal(envelope.Payload, &req); err != nil {
		w.failJob(ctx, jobID, "", "Invalid payload")
		return fmt.Errorf("failed to unmarshal generation payload: %w", err)
	}

	status, err := w.generationService.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	assetID := status.AssetID

	w.broadcastQueue(ctx)

	type genStep struct {
		progress float64
		stage    string
		duration time.Duration
		run      func()
	}
	steps := []genStep{
		{0.05, "preprocessing", 500 * time.Millisecond, nil},
		{0.15, "mesh", 1 * time.Second, func() { w.pipelineService.LoadShape() }},
		{0.55, "mesh", 2 * time.Second, func() { w.finishMesh(ctx, assetID) }},
	}
	if req.Parameters.GenerateTexture {
		steps = append(steps,
			genStep{0.65, "texture", 1 * time.Second, func() { w.pipelineService.LoadTexture() }},
			genStep{0.9, "texture", 2 * time.Second, func() { w.finishTexture(ctx, assetID) }},
		)
	}
	steps = append(steps, genStep{0.97, "export", 500 * time.Millisecond, nil})

	for _, step := range steps {
		if w.generationService.IsCancelled(ctx, jobID) {
			log.Printf("Generation job %s cancelled", jobID)
			w.hub.BroadcastProgress(jobID, assetID, step.progress, step.stage, model.JobStatusCancelled, "")
			w.pipelineService.Release()
			w.broadcastQueue(ctx)
			return nil
		}

		if err := w.generationService.UpdateJobProgress(ctx, jobID, step.progress, step.stage); err != nil {
			log.Printf("Failed to update progress for %s: %v", jobID, err)
		}
		w.hub.BroadcastProgress(jobID, assetID, step.progress, step.stage, model.JobStatusProcessing, "")
		if step.run != nil {
			step.run()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step.duration):
		}
	}

	asset, err := w.assetService.GetAsset(ctx, assetID)
	if err != nil {
		w.failJob(ctx, jobID, assetID, "Asset record lost")
		return err
	}
	asset.DownloadURL = fmt.Sprintf("/files/%s.%s", assetID, req.Parameters.OutputFormat)

	if err := w.generationService.CompleteJob(ctx, jobID, asset); err != nil {
		w.failJob(ctx, jobID, assetID, "Failed to save result")
		return err
	}

	w.hub.BroadcastProgress(jobID, assetID, 1, "export", model.JobStatusCompleted, "")
	w.hub.BroadcastAssetReady(asset)
	w.pipelineService.Release()
	w.broadcastQueue(ctx)

	log.Printf("Generation job %s completed", jobID)
	return nil
}

func (w *GenerationWorker) finishMesh(ctx context.Context, assetID string) {
	meshPath := fmt.Sprintf("/meshes/%s.glb", assetID)
	if err := w.assetService.MarkMesh(ctx, assetID, meshPath); err != nil {
		log.Printf("Failed to mark mesh for %s: %v", assetID, err)
		return
	}
	w.hub.BroadcastWorkflowUpdate(assetID, model.BackendStageMeshGenerated, model.BackendStatusCompleted, "")
}

func (w *GenerationWorker) finishTexture(ctx context.Context, assetID string) {
	texturedPath := fmt.Sprintf("/meshes/%s_textured.glb", assetID)
	if err := w.assetService.MarkTextured(ctx, assetID, texturedPath); err != nil {
		log.Printf("Failed to mark texture for %s: %v", assetID, err)
		return
	}
	w.hub.BroadcastWorkflowUpdate(assetID, model.BackendStageTextured, model.BackendStatusCompleted, "")
}

func (w *GenerationWorker) failJob(ctx context.Context, jobID, assetID, errMsg string) {
	if err := w.generationService.FailJob(ctx, jobID, errMsg); err != nil {
		log.Printf("Failed to mark job %s as failed: %v", jobID, err)
	}
	w.hub.BroadcastProgress(jobID, assetID, 0, "", model.JobStatusFailed, errMsg)
	w.pipelineService.Release()
	w.broadcastQueue(ctx)
}

func (w *GenerationWorker) broadcastQueue(ctx context.Context) {
	qs, err := w.generationService.QueueStatus(ctx)
	if err != nil {
		log.Printf("Failed to compute queue status: %v", err)
		return
	}
	w.hub.BroadcastQueueStatus(qs)
}
