package pipeline

import (
	"sync"
	"time"

	"github.com/forge3d/realtime/internal/model"
)

// Gauge holds the latest backend pipeline resource snapshot. Updates
// are wholesale overwrites; the backend is the only source of truth and
// no local arithmetic is performed on the numbers.
type Gauge struct {
	mu        sync.RWMutex
	status    model.PipelineStatus
	updatedAt time.Time
}

// NewGauge creates a gauge with a zero snapshot.
func NewGauge() *Gauge {
	return &Gauge{}
}

// Set replaces the snapshot.
func (g *Gauge) Set(status model.PipelineStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
	g.updatedAt = time.Now()
}

// Apply folds a pipeline_status event.
func (g *Gauge) Apply(ev *model.PipelineStatusEvent) {
	g.Set(model.PipelineStatus{
		ShapeLoaded:     ev.ShapeLoaded,
		TextureLoaded:   ev.TextureLoaded,
		VRAMAllocatedGB: ev.VRAMAllocatedGB,
		VRAMFreeGB:      ev.VRAMFreeGB,
		VRAMTotalGB:     ev.VRAMTotalGB,
		ReadyForStage:   ev.ReadyForStage,
	})
}

// Status returns the latest snapshot and when it arrived. A zero time
// means no snapshot has been received yet.
func (g *Gauge) Status() (model.PipelineStatus, time.Time) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status, g.updatedAt
}
