package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/forge3d/realtime/internal/channel"
	"github.com/forge3d/realtime/internal/client"
	"github.com/forge3d/realtime/internal/config"
	"github.com/forge3d/realtime/internal/model"
	"github.com/forge3d/realtime/internal/pipeline"
	"github.com/forge3d/realtime/internal/queue"
	"github.com/forge3d/realtime/internal/workflow"
)

// Backend is the slice of the HTTP API the session needs.
type Backend interface {
	client.JobSubmitter
	GetAsset(ctx context.Context, assetID string) (*model.Asset, error)
	ApproveStage(ctx context.Context, assetID string) (*model.WorkflowActionResponse, error)
	SkipToExport(ctx context.Context, assetID string) (*model.WorkflowActionResponse, error)
	AdvanceStage(ctx context.Context, assetID string, req *model.AdvanceStageRequest) (*model.WorkflowActionResponse, error)
	GetPipelineStatus(ctx context.Context) (*model.PipelineStatus, error)
}

// ErrBusy is returned when a submission overlaps an in-flight job of
// the same kind.
var ErrBusy = errors.New("a job of this kind is already in flight")

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session is closed")

// Session ties the channel, the queue tracker, the workflow machine,
// and the pipeline gauge together into one live view of the backend.
// A session is single-use: once closed it stays closed, and callers
// build a new one to reconnect.
type Session struct {
	cfg       *config.Config
	router    *channel.Router
	transport *channel.Transport
	backend   Backend

	queue    *queue.Tracker
	workflow *workflow.Machine
	pipeline *pipeline.Gauge

	mu              sync.Mutex
	closed          bool
	generating      bool
	rigging         bool
	generationJobID string
	riggingJobID    string
	pollStop        chan struct{}

	subs []*channel.Subscription
}

// NewSession wires a session against the configured backend.
func NewSession(cfg *config.Config) *Session {
	return NewSessionWithBackend(cfg, client.NewBackendClient(&cfg.Backend))
}

// NewSessionWithBackend wires a session against a caller-supplied
// backend, used by tests.
func NewSessionWithBackend(cfg *config.Config, backend Backend) *Session {
	router := channel.NewRouter()
	s := &Session{
		cfg:       cfg,
		router:    router,
		transport: channel.NewTransport(cfg.Channel, router),
		backend:   backend,
		queue:     queue.NewTracker(),
		workflow:  workflow.NewMachine(),
		pipeline:  pipeline.NewGauge(),
	}

	s.subs = append(s.subs,
		router.OnEvent(s.handleEvent),
		router.OnConnect(s.handleConnect),
		router.OnDisconnect(func() {
			log.Printf("[Session] Channel disconnected")
		}),
		router.OnError(func(err error) {
			if errors.Is(err, channel.ErrReconnectExhausted) {
				log.Printf("[Session] Channel gave up reconnecting; relying on polling")
			}
		}),
	)
	return s
}

// Start opens the channel and begins the backup poll.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.pollStop == nil {
		s.pollStop = make(chan struct{})
		go s.pollLoop(s.pollStop)
	}
	s.mu.Unlock()

	s.transport.Connect()
	return nil
}

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.pollStop != nil {
		close(s.pollStop)
		s.pollStop = nil
	}
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	s.transport.Disconnect()
	log.Printf("[Session] Closed")
}

// GenerateAsset submits a generation job. Only one generation runs at a
// time; the busy flag is raised before the request goes out and cleared
// only by the job's terminal event, so a second submit during the HTTP
// round trip is rejected too.
func (s *Session) GenerateAsset(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResponse, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.generating {
		s.mu.Unlock()
		return nil, fmt.Errorf("generation: %w", ErrBusy)
	}
	s.generating = true
	s.mu.Unlock()

	resp, err := s.backend.SubmitGeneration(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.generating = false
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.generationJobID = resp.JobID
	s.mu.Unlock()

	s.queue.AddJob(model.Job{
		ID:      resp.JobID,
		AssetID: resp.AssetID,
		Type:    req.Type,
		Status:  resp.Status,
	})
	s.transport.SubscribeToJob(resp.JobID)
	log.Printf("[Session] Generation job %s queued (position %d)", resp.JobID, resp.QueuePosition)
	return resp, nil
}

// RigAsset submits a rigging job for an asset. Mirrors GenerateAsset's
// single-flight rule.
func (s *Session) RigAsset(ctx context.Context, req *model.RiggingRequest) (*model.RiggingResponse, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.rigging {
		s.mu.Unlock()
		return nil, fmt.Errorf("rigging: %w", ErrBusy)
	}
	s.rigging = true
	s.mu.Unlock()

	resp, err := s.backend.SubmitRigging(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.rigging = false
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.riggingJobID = resp.JobID
	s.mu.Unlock()

	s.queue.AddJob(model.Job{
		ID:      resp.JobID,
		AssetID: resp.AssetID,
		Type:    model.JobTypeRigging,
		Status:  resp.Status,
	})
	s.transport.SubscribeToJob(resp.JobID)
	log.Printf("[Session] Rigging job %s queued for asset %s", resp.JobID, req.AssetID)
	return resp, nil
}

// CancelJob cancels a job optimistically: the local state flips to
// cancelled at once, and the server's eventual terminal event either
// confirms it or corrects it.
func (s *Session) CancelJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	s.queue.CancelJobLocally(jobID)
	if _, err := s.backend.CancelJob(ctx, jobID); err != nil {
		// Local state stays cancelled; the next event or poll for this
		// job settles it.
		log.Printf("[Session] Cancel request for %s failed: %v", jobID, err)
		return err
	}
	return nil
}

// StartWorkflow begins a fresh workflow at the upload stage.
func (s *Session) StartWorkflow(assetID string) {
	s.workflow.Start(assetID)
}

// StartWorkflowFromAsset fetches the asset record and resumes the
// workflow at the stage after the last one the backend recorded.
func (s *Session) StartWorkflowFromAsset(ctx context.Context, assetID string) error {
	asset, err := s.backend.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	entry := entryStage(asset)
	s.workflow.StartFromAsset(assetID, entry)
	return nil
}

// entryStage picks the resume point for an existing asset: the first
// stage whose artifact the asset does not have yet.
func entryStage(asset *model.Asset) model.Stage {
	switch {
	case asset.IsRigged:
		return model.StageExport
	case asset.HasTexture:
		return model.StageRigging
	case asset.HasMesh:
		return model.StageTexture
	default:
		return model.StageMesh
	}
}

// ApproveStage approves the active workflow's current stage on the
// server and advances the local machine.
func (s *Session) ApproveStage(ctx context.Context) error {
	assetID := s.workflow.Snapshot().ActiveAssetID
	if assetID == "" {
		return errors.New("no active workflow")
	}
	if _, err := s.backend.ApproveStage(ctx, assetID); err != nil {
		return err
	}
	s.workflow.ApproveStage()
	return nil
}

// SkipToExport jumps the active workflow to export, server first.
func (s *Session) SkipToExport(ctx context.Context) error {
	assetID := s.workflow.Snapshot().ActiveAssetID
	if assetID == "" {
		return errors.New("no active workflow")
	}
	if _, err := s.backend.SkipToExport(ctx, assetID); err != nil {
		return err
	}
	s.workflow.SkipToExport()
	return nil
}

// RedoStage rewinds the active workflow locally. The backend learns of
// the redo when the stage's job is resubmitted.
func (s *Session) RedoStage(stage model.Stage) {
	s.workflow.RedoStage(stage)
}

// CancelWorkflow abandons the active workflow.
func (s *Session) CancelWorkflow() {
	s.workflow.Cancel()
}

// RefreshPipelineStatus polls the backend resource snapshot once,
// outside the usual pipeline_status broadcasts.
func (s *Session) RefreshPipelineStatus(ctx context.Context) error {
	status, err := s.backend.GetPipelineStatus(ctx)
	if err != nil {
		return err
	}
	s.pipeline.Set(*status)
	return nil
}

// Read-side accessors.

func (s *Session) QueueStatus() model.QueueStatus       { return s.queue.Status() }
func (s *Session) Jobs() []model.Job                    { return s.queue.Jobs() }
func (s *Session) Job(id string) (model.Job, bool)      { return s.queue.JobByID(id) }
func (s *Session) Workflow() model.WorkflowState        { return s.workflow.Snapshot() }
func (s *Session) Pipeline() (model.PipelineStatus, time.Time) { return s.pipeline.Status() }
func (s *Session) ChannelState() channel.State          { return s.transport.State() }

// Router exposes the event router for additional subscribers, such as
// a UI layer rendering live updates.
func (s *Session) Router() *channel.Router { return s.router }

// IsGenerating reports whether a generation job is in flight.
func (s *Session) IsGenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// IsRigging reports whether a rigging job is in flight.
func (s *Session) IsRigging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rigging
}

func (s *Session) handleConnect() {
	log.Printf("[Session] Channel connected; requesting status snapshot")
	s.transport.Send(model.Directive{Action: model.WSActionRequestStatus})
}

// handleEvent folds every decoded channel event into the local state.
func (s *Session) handleEvent(ev model.Event) {
	switch e := ev.(type) {
	case *model.ProgressEvent:
		s.queue.UpdateJobProgress(e.JobID, e.Progress, e.Stage)
		if e.Status != "" {
			var errText *string
			if e.Error != "" {
				errText = &e.Error
			}
			s.queue.UpdateJobStatus(e.JobID, e.Status, errText)
			if e.Status.IsTerminal() {
				s.clearBusy(e.JobID)
			}
		}
		s.workflow.ApplyProgress(e)

	case *model.QueueStatusEvent:
		s.queue.SetQueueStatus(e.QueueStatus)

	case *model.JobCreatedEvent:
		s.queue.AddJob(model.Job{
			ID:      e.JobID,
			AssetID: e.AssetID,
			Type:    e.JobType,
			Status:  model.JobStatusQueued,
		})

	case *model.AssetReadyEvent:
		log.Printf("[Session] Asset %s ready", e.AssetID)

	case *model.ErrorEvent:
		log.Printf("[Session] Backend error %s: %s", e.Code, e.Message)
		if e.JobID != "" {
			msg := e.Message
			s.queue.UpdateJobStatus(e.JobID, model.JobStatusFailed, &msg)
			s.clearBusy(e.JobID)
		}
		s.workflow.ApplyError(e)

	case *model.RiggingProgressEvent:
		s.queue.UpdateJobProgress(e.JobID, e.Progress, e.Stage)
		s.workflow.ApplyRiggingProgress(e)

	case *model.RiggingCompleteEvent:
		if e.JobID != "" {
			s.queue.UpdateJobStatus(e.JobID, model.JobStatusCompleted, nil)
			s.clearBusy(e.JobID)
		}
		s.workflow.ApplyRiggingComplete(e)

	case *model.RiggingFailedEvent:
		if e.JobID != "" {
			msg := e.Error
			s.queue.UpdateJobStatus(e.JobID, model.JobStatusFailed, &msg)
			s.clearBusy(e.JobID)
		}
		s.workflow.ApplyRiggingFailed(e)

	case *model.WorkflowUpdateEvent:
		s.workflow.ApplyUpdate(e)

	case *model.PipelineStatusEvent:
		s.pipeline.Apply(e)
	}
}

// clearBusy drops the single-flight flag belonging to a finished job.
func (s *Session) clearBusy(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jobID == s.generationJobID {
		s.generating = false
		s.generationJobID = ""
	}
	if jobID == s.riggingJobID {
		s.rigging = false
		s.riggingJobID = ""
	}
}

// pollLoop is the backup path for when the channel is down: active jobs
// are polled over HTTP and folded through the same tracker guards, so a
// poll result and a late event cannot double-apply.
func (s *Session) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.Poll.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.transport.State() == channel.StateOpen {
				continue
			}
			s.pollActiveJobs()
		case <-stop:
			return
		}
	}
}

func (s *Session) pollActiveJobs() {
	ids := s.queue.ActiveJobIDs()
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Poll.Interval)
	defer cancel()

	for _, id := range ids {
		st, err := s.backend.GetJobStatus(ctx, id)
		if err != nil {
			log.Printf("[Session] Backup poll for %s failed: %v", id, err)
			continue
		}
		s.queue.UpdateJobProgress(id, st.Progress, st.Stage)
		s.queue.UpdateJobStatus(id, st.Status, st.Error)
		if st.Status.IsTerminal() {
			s.clearBusy(id)
		}
	}
}
