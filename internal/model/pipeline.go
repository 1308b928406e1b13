package model

// PipelineStatus is the coarse backend resource snapshot: which of the
// two sub-pipelines is resident and how much VRAM remains.
type PipelineStatus struct {
	ShapeLoaded     bool    `json:"shape_loaded"`
	TextureLoaded   bool    `json:"texture_loaded"`
	VRAMAllocatedGB float64 `json:"vram_allocated_gb"`
	VRAMFreeGB      float64 `json:"vram_free_gb"`
	VRAMTotalGB     float64 `json:"vram_total_gb"`
	ReadyForStage   string  `json:"ready_for_stage,omitempty"`
}
