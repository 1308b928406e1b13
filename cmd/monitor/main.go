package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forge3d/realtime/internal/config"
	"github.com/forge3d/realtime/internal/model"
	"github.com/forge3d/realtime/internal/session"
)

// monitor attaches a live session to a running backend and prints the
// event stream. With -prompt or -image it also submits a generation,
// which makes it a handy smoke test for the whole realtime path.
func main() {
	prompt := flag.String("prompt", "", "submit a text_to_3d job with this prompt")
	image := flag.String("image", "", "submit an image_to_3d job from this file")
	rig := flag.String("rig", "", "submit a rigging job for this asset id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	s := session.NewSession(cfg)
	defer s.Close()

	s.Router().OnEvent(func(ev model.Event) {
		switch e := ev.(type) {
		case *model.ProgressEvent:
			log.Printf("progress job=%s %3.0f%% stage=%s status=%s", e.JobID, e.Progress*100, e.Stage, e.Status)
		case *model.QueueStatusEvent:
			log.Printf("queue size=%d pending=%d processing=%d completed=%d failed=%d",
				e.QueueSize, e.PendingCount, e.ProcessingCount, e.CompletedCount, e.FailedCount)
		case *model.JobCreatedEvent:
			log.Printf("job created id=%s type=%s position=%d", e.JobID, e.JobType, e.QueuePosition)
		case *model.AssetReadyEvent:
			log.Printf("asset ready id=%s name=%q", e.AssetID, e.Name)
		case *model.RiggingCompleteEvent:
			log.Printf("rig complete asset=%s type=%s bones=%d", e.AssetID, e.CharacterType, e.BoneCount)
		case *model.WorkflowUpdateEvent:
			log.Printf("workflow asset=%s stage=%s status=%s", e.AssetID, e.Stage, e.Status)
		case *model.PipelineStatusEvent:
			log.Printf("pipeline shape=%t texture=%t vram %.1f/%.1f GB free",
				e.ShapeLoaded, e.TextureLoaded, e.VRAMFreeGB, e.VRAMTotalGB)
		default:
			log.Printf("event %s", ev.EventType())
		}
	})

	if err := s.Start(); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.Timeout)
	defer cancel()

	switch {
	case *prompt != "":
		resp, err := s.GenerateAsset(ctx, &model.GenerationRequest{
			Type:       model.JobTypeTextTo3D,
			Prompt:     *prompt,
			Parameters: model.DefaultGenerationParameters(),
		})
		if err != nil {
			log.Fatalf("Submit failed: %v", err)
		}
		log.Printf("Submitted job %s for asset %s", resp.JobID, resp.AssetID)

	case *image != "":
		resp, err := s.GenerateAsset(ctx, &model.GenerationRequest{
			Type:       model.JobTypeImageTo3D,
			ImagePath:  *image,
			Parameters: model.DefaultGenerationParameters(),
		})
		if err != nil {
			log.Fatalf("Submit failed: %v", err)
		}
		log.Printf("Submitted job %s for asset %s", resp.JobID, resp.AssetID)

	case *rig != "":
		resp, err := s.RigAsset(ctx, &model.RiggingRequest{
			AssetID:       *rig,
			CharacterType: model.CharacterTypeAuto,
		})
		if err != nil {
			log.Fatalf("Submit failed: %v", err)
		}
		log.Printf("Submitted rigging job %s", resp.JobID)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Give in-flight log lines a moment to land before teardown.
	time.Sleep(100 * time.Millisecond)
	log.Println("Shutting down monitor")
}
