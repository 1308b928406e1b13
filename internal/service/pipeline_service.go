package service

import (
	"sync"

	"github.com/forge3d/realtime/internal/model"
	ws "github.com/forge3d/realtime/internal/websocket"
)

// Simulated model footprints in GB. The real pipeline swaps its shape
// and texture sub-models in and out of VRAM; the simulator mimics the
// accounting so the UI's gauge behaves like production.
const (
	shapeModelGB   = 6.5
	textureModelGB = 8.0
)

// PipelineService tracks the simulated GPU residency of the generation
// pipeline. State is in-process only: it describes this server's GPU,
// so it does not belong in Redis.
type PipelineService struct {
	mu     sync.Mutex
	status model.PipelineStatus
	hub    *ws.Hub
}

func NewPipelineService(hub *ws.Hub, totalGB float64) *PipelineService {
	return &PipelineService{
		status: model.PipelineStatus{
			VRAMFreeGB:  totalGB,
			VRAMTotalGB: totalGB,
		},
		hub: hub,
	}
}

// Status returns the current snapshot.
func (s *PipelineService) Status() model.PipelineStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LoadShape marks the shape sub-model resident.
func (s *PipelineService) LoadShape() {
	s.mutate(func() {
		if !s.status.ShapeLoaded {
			s.status.ShapeLoaded = true
			s.allocate(shapeModelGB)
		}
		s.status.ReadyForStage = "mesh"
	})
}

// LoadTexture marks the texture sub-model resident.
func (s *PipelineService) LoadTexture() {
	s.mutate(func() {
		if !s.status.TextureLoaded {
			s.status.TextureLoaded = true
			s.allocate(textureModelGB)
		}
		s.status.ReadyForStage = "texture"
	})
}

// Release evicts both sub-models, as after a completed run.
func (s *PipelineService) Release() {
	s.mutate(func() {
		if s.status.ShapeLoaded {
			s.status.ShapeLoaded = false
			s.allocate(-shapeModelGB)
		}
		if s.status.TextureLoaded {
			s.status.TextureLoaded = false
			s.allocate(-textureModelGB)
		}
		s.status.ReadyForStage = ""
	})
}

// allocate adjusts the VRAM counters. Caller holds the lock.
func (s *PipelineService) allocate(gb float64) {
	s.status.VRAMAllocatedGB += gb
	s.status.VRAMFreeGB = s.status.VRAMTotalGB - s.status.VRAMAllocatedGB
	if s.status.VRAMAllocatedGB < 0 {
		s.status.VRAMAllocatedGB = 0
		s.status.VRAMFreeGB = s.status.VRAMTotalGB
	}
}

// mutate applies one change and broadcasts the new snapshot.
func (s *PipelineService) mutate(f func()) {
	s.mu.Lock()
	f()
	snapshot := s.status
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.BroadcastPipelineStatus(snapshot)
	}
}
