package model

import (
	"encoding/json"
	"fmt"
)

// Server -> client message types
const (
	WSTypeProgress        = "progress"
	WSTypeQueueStatus     = "queue_status"
	WSTypeJobCreated      = "job_created"
	WSTypeAssetReady      = "asset_ready"
	WSTypeError           = "error"
	WSTypeRiggingProgress = "rigging_progress"
	WSTypeRiggingComplete = "rigging_complete"
	WSTypeRiggingFailed   = "rigging_failed"
	WSTypeWorkflowUpdate  = "workflow_update"
	WSTypePipelineStatus  = "pipeline_status"
	WSTypePong            = "pong"
)

// Client -> server actions
const (
	WSActionSubscribe     = "subscribe"
	WSActionUnsubscribe   = "unsubscribe"
	WSActionRequestStatus = "request_status"
	WSActionPing          = "ping"
)

// Event is a decoded server -> client message.
type Event interface {
	EventType() string
}

// ProgressEvent carries a progress update for a job.
type ProgressEvent struct {
	Type     string          `json:"type"`
	JobID    string          `json:"job_id"`
	AssetID  string          `json:"asset_id,omitempty"`
	Progress float64         `json:"progress"`
	Stage    string          `json:"stage"`
	Status   JobStatus       `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// QueueStatusEvent carries the server's authoritative queue counters.
type QueueStatusEvent struct {
	Type string `json:"type"`
	QueueStatus
}

// JobCreatedEvent announces a newly queued job.
type JobCreatedEvent struct {
	Type          string `json:"type"`
	JobID         string `json:"job_id"`
	AssetID       string `json:"asset_id"`
	JobType       string `json:"job_type"`
	QueuePosition int    `json:"queue_position"`
}

// AssetReadyEvent announces a finished asset.
type AssetReadyEvent struct {
	Type         string `json:"type"`
	AssetID      string `json:"asset_id"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
}

// ErrorEvent is a protocol-level error notification.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
	AssetID string `json:"asset_id,omitempty"`
}

// RiggingProgressEvent carries rigging-specific progress.
type RiggingProgressEvent struct {
	Type         string  `json:"type"`
	JobID        string  `json:"job_id"`
	AssetID      string  `json:"asset_id,omitempty"`
	Progress     float64 `json:"progress"`
	Stage        string  `json:"stage"`
	DetectedType string  `json:"detected_type,omitempty"`
}

// RiggingCompleteEvent announces a finished rig.
type RiggingCompleteEvent struct {
	Type          string `json:"type"`
	JobID         string `json:"job_id,omitempty"`
	AssetID       string `json:"asset_id"`
	CharacterType string `json:"character_type"`
	BoneCount     int    `json:"bone_count"`
}

// RiggingFailedEvent announces a failed rig.
type RiggingFailedEvent struct {
	Type    string `json:"type"`
	JobID   string `json:"job_id,omitempty"`
	AssetID string `json:"asset_id"`
	Error   string `json:"error"`
}

// WorkflowUpdateEvent announces a server-side workflow stage change.
// Stage and Status use the backend vocabulary; see workflow.MapStage
// and workflow.MapStatus for the translation to local terms.
type WorkflowUpdateEvent struct {
	Type    string `json:"type"`
	AssetID string `json:"asset_id"`
	Stage   string `json:"stage"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// PipelineStatusEvent is a snapshot of backend pipeline occupancy.
type PipelineStatusEvent struct {
	Type            string  `json:"type"`
	ShapeLoaded     bool    `json:"shape_loaded"`
	TextureLoaded   bool    `json:"texture_loaded"`
	VRAMAllocatedGB float64 `json:"vram_allocated_gb"`
	VRAMFreeGB      float64 `json:"vram_free_gb"`
	VRAMTotalGB     float64 `json:"vram_total_gb,omitempty"`
	ReadyForStage   string  `json:"ready_for_stage,omitempty"`
}

// PongEvent answers a client ping.
type PongEvent struct {
	Type string `json:"type"`
}

func (e *ProgressEvent) EventType() string        { return WSTypeProgress }
func (e *QueueStatusEvent) EventType() string     { return WSTypeQueueStatus }
func (e *JobCreatedEvent) EventType() string      { return WSTypeJobCreated }
func (e *AssetReadyEvent) EventType() string      { return WSTypeAssetReady }
func (e *ErrorEvent) EventType() string           { return WSTypeError }
func (e *RiggingProgressEvent) EventType() string { return WSTypeRiggingProgress }
func (e *RiggingCompleteEvent) EventType() string { return WSTypeRiggingComplete }
func (e *RiggingFailedEvent) EventType() string   { return WSTypeRiggingFailed }
func (e *WorkflowUpdateEvent) EventType() string  { return WSTypeWorkflowUpdate }
func (e *PipelineStatusEvent) EventType() string  { return WSTypePipelineStatus }
func (e *PongEvent) EventType() string            { return WSTypePong }

// Directive is a client -> server frame.
type Directive struct {
	Action string `json:"action"`
	JobID  string `json:"job_id,omitempty"`
}

// DecodeEvent parses a raw frame into its typed event. Frames with a
// missing or unrecognized type tag return an error; callers drop them.
func DecodeEvent(data []byte) (Event, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	var ev Event
	switch tag.Type {
	case WSTypeProgress:
		ev = &ProgressEvent{}
	case WSTypeQueueStatus:
		ev = &QueueStatusEvent{}
	case WSTypeJobCreated:
		ev = &JobCreatedEvent{}
	case WSTypeAssetReady:
		ev = &AssetReadyEvent{}
	case WSTypeError:
		ev = &ErrorEvent{}
	case WSTypeRiggingProgress:
		ev = &RiggingProgressEvent{}
	case WSTypeRiggingComplete:
		ev = &RiggingCompleteEvent{}
	case WSTypeRiggingFailed:
		ev = &RiggingFailedEvent{}
	case WSTypeWorkflowUpdate:
		ev = &WorkflowUpdateEvent{}
	case WSTypePipelineStatus:
		ev = &PipelineStatusEvent{}
	case WSTypePong:
		ev = &PongEvent{}
	default:
		return nil, fmt.Errorf("unknown message type %q", tag.Type)
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag.Type, err)
	}
	return ev, nil
}
