package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/forge3d/realtime/internal/config"
	"github.com/forge3d/realtime/internal/model"
)

// JobSubmitter defines the job-facing backend operations.
type JobSubmitter interface {
	SubmitGeneration(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResponse, error)
	SubmitRigging(ctx context.Context, req *model.RiggingRequest) (*model.RiggingResponse, error)
	GetJobStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error)
	CancelJob(ctx context.Context, jobID string) (*model.CancelResponse, error)
}

// BackendClient talks to the generation backend's HTTP API. Realtime
// updates arrive over the channel; this client covers submission,
// cancellation, and the backup status poll.
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewBackendClient creates a backend API client.
func NewBackendClient(cfg *config.BackendConfig) *BackendClient {
	return &BackendClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
	}
}

// SubmitGeneration queues an image- or text-to-3D job.
func (c *BackendClient) SubmitGeneration(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResponse, error) {
	var result model.GenerationResponse
	if err := c.post(ctx, "/api/generate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitRigging queues a rigging job for an existing asset.
func (c *BackendClient) SubmitRigging(ctx context.Context, req *model.RiggingRequest) (*model.RiggingResponse, error) {
	var result model.RiggingResponse
	if err := c.post(ctx, "/api/rig", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJobStatus retrieves the current state of a job.
func (c *BackendClient) GetJobStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	endpoint := fmt.Sprintf("/api/jobs/%s", jobID)
	var result model.JobStatusResponse
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelJob asks the backend to cancel a queued or running job.
func (c *BackendClient) CancelJob(ctx context.Context, jobID string) (*model.CancelResponse, error) {
	endpoint := fmt.Sprintf("/api/jobs/%s/cancel", jobID)
	var result model.CancelResponse
	if err := c.post(ctx, endpoint, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PollJobStatus polls a job until it reaches a terminal status or the
// wait budget runs out. It backs the channel up when events are missed.
func (c *BackendClient) PollJobStatus(ctx context.Context, jobID string, interval, maxWait time.Duration) (*model.JobStatusResponse, error) {
	deadline := time.Now().Add(maxWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		result, err := c.GetJobStatus(ctx, jobID)
		if err != nil {
			log.Printf("[Backend API] Poll job #%d (job=%s) error: %v", attempt, jobID, err)
			return nil, err
		}

		log.Printf("[Backend API] Poll job #%d (job=%s) status: %s", attempt, jobID, result.Status)

		if result.Status.IsTerminal() {
			return result, nil
		}

		select {
		case <-ctx.Done():
			log.Printf("[Backend API] Poll job (job=%s) context cancelled", jobID)
			return nil, ctx.Err()
		case <-time.After(interval):
			continue
		}
	}

	return nil, fmt.Errorf("job %s did not finish within %v", jobID, maxWait)
}

// post sends a POST request with JSON body
func (c *BackendClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *BackendClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *BackendClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[Backend API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Backend API] ✗ %s %s request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Backend API] ✗ %s %s failed to read response: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Backend API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Backend API] ✗ unmarshal error for %s %s: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
