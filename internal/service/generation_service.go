package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/forge3d/realtime/internal/model"
)

const (
	TaskTypeGeneration = "generation:process"
	TaskTypeRigging    = "rigging:process"

	jobIndexKey  = "jobs:index"
	jobRetention = 24 * time.Hour
)

// StoredJob is the Redis representation of a job: the public fields
// plus the task payload and result blobs.
type StoredJob struct {
	model.Job
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// GenerationService handles job submission and state in Redis, with
// Asynq carrying the work to the simulated pipeline workers.
type GenerationService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewGenerationService(redisClient *redis.Client, asynqClient *asynq.Client) *GenerationService {
	return &GenerationService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// SubmitGeneration queues a new generation job for an asset.
func (s *GenerationService) SubmitGeneration(ctx context.Context, req *model.GenerationRequest, assetID string) (*model.GenerationResponse, error) {
	jobID := uuid.New().String()
	now := time.Now()

	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &StoredJob{
		Job: model.Job{
			ID:        jobID,
			AssetID:   assetID,
			Type:      req.Type,
			Status:    model.JobStatusQueued,
			CreatedAt: now,
		},
		Payload: payloadBytes,
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newTask(TaskTypeGeneration, jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue("generation"),
		asynq.MaxRetry(1),
		asynq.Retention(jobRetention),
	); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	qs, _ := s.QueueStatus(ctx)
	return &model.GenerationResponse{
		JobID:         jobID,
		AssetID:       assetID,
		Status:        model.JobStatusQueued,
		QueuePosition: qs.PendingCount,
	}, nil
}

// SubmitRigging queues a rigging job for an existing asset.
func (s *GenerationService) SubmitRigging(ctx context.Context, req *model.RiggingRequest) (*model.RiggingResponse, error) {
	jobID := uuid.New().String()
	now := time.Now()

	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &StoredJob{
		Job: model.Job{
			ID:        jobID,
			AssetID:   req.AssetID,
			Type:      model.JobTypeRigging,
			Status:    model.JobStatusQueued,
			CreatedAt: now,
		},
		Payload: payloadBytes,
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newTask(TaskTypeRigging, jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue("rigging"),
		asynq.MaxRetry(1),
		asynq.Retention(jobRetention),
	); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.RiggingResponse{
		JobID:   jobID,
		AssetID: req.AssetID,
		Status:  model.JobStatusQueued,
	}, nil
}

// GetStatus returns the poll-endpoint view of a job.
func (s *GenerationService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &model.JobStatusResponse{
		JobID:       job.ID,
		AssetID:     job.AssetID,
		Status:      job.Status,
		Progress:    job.Progress,
		Stage:       job.Stage,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// Cancel marks a job cancelled. Workers check this flag between steps,
// so a running job stops at its next checkpoint.
func (s *GenerationService) Cancel(ctx context.Context, jobID string) (*model.CancelResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("job already finished")
	}

	job.Status = model.JobStatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	return &model.CancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCancelled,
	}, nil
}

// IsCancelled reports whether a job was cancelled, for worker checkpoints.
func (s *GenerationService) IsCancelled(ctx context.Context, jobID string) bool {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false
	}
	return job.Status == model.JobStatusCancelled
}

// UpdateJobProgress updates job progress (called by workers).
func (s *GenerationService) UpdateJobProgress(ctx context.Context, jobID string, progress float64, stage string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	job.Progress = progress
	job.Stage = stage
	if job.Status == model.JobStatusQueued || job.Status == model.JobStatusPending {
		job.Status = model.JobStatusProcessing
		now := time.Now()
		job.StartedAt = &now
	}
	return s.saveJob(ctx, job)
}

// CompleteJob marks a job as completed (called by workers).
func (s *GenerationService) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusCompleted
	job.Progress = 1
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now
	return s.saveJob(ctx, job)
}

// FailJob marks a job as failed (called by workers).
func (s *GenerationService) FailJob(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now
	return s.saveJob(ctx, job)
}

// QueueStatus derives the aggregate counters from every stored job.
func (s *GenerationService) QueueStatus(ctx context.Context) (model.QueueStatus, error) {
	ids, err := s.redis.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return model.QueueStatus{}, err
	}

	var qs model.QueueStatus
	for _, id := range ids {
		job, err := s.getJob(ctx, id)
		if err != nil {
			// Expired job record; drop it from the index.
			s.redis.SRem(ctx, jobIndexKey, id)
			continue
		}
		qs.TotalJobs++
		switch job.Status {
		case model.JobStatusPending, model.JobStatusQueued:
			qs.PendingCount++
		case model.JobStatusProcessing:
			qs.ProcessingCount++
			qs.CurrentJobID = job.ID
		case model.JobStatusCompleted:
			qs.CompletedCount++
		case model.JobStatusFailed:
			qs.FailedCount++
		}
	}
	qs.QueueSize = qs.PendingCount + qs.ProcessingCount
	return qs, nil
}

// Helper methods

func (s *GenerationService) saveJob(ctx context.Context, job *StoredJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, jobRetention)
	pipe.SAdd(ctx, jobIndexKey, job.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *GenerationService) getJob(ctx context.Context, jobID string) (*StoredJob, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("job:%s", jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job not found")
		}
		return nil, err
	}

	var job StoredJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func newTask(taskType, jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": payload,
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}
