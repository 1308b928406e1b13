package model

import "time"

// Job represents one backend unit of generation or rigging work.
type Job struct {
	ID          string     `json:"id"`
	AssetID     string     `json:"assetId,omitempty"` // empty until assigned
	Type        string     `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    float64    `json:"progress"` // 0.0 - 1.0
	Stage       string     `json:"stage,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// QueueStatus holds the aggregate counters derived from job statuses.
type QueueStatus struct {
	QueueSize       int    `json:"queue_size"`
	CurrentJobID    string `json:"current_job_id,omitempty"`
	PendingCount    int    `json:"pending_count"`
	ProcessingCount int    `json:"processing_count"`
	CompletedCount  int    `json:"completed_count"`
	FailedCount     int    `json:"failed_count"`
	TotalJobs       int    `json:"total_jobs,omitempty"`
}
