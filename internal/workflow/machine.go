package workflow

import (
	"log"
	"sync"

	"github.com/forge3d/realtime/internal/model"
)

// Machine tracks one asset's position in the five-stage pipeline
// (upload, mesh, texture, rigging, export). Exactly one workflow is
// active at a time; starting a new one replaces the previous state.
//
// Mutations come from two directions: explicit user actions (approve,
// skip to export, redo, cancel) and channel events. Events carrying a
// different asset id than the active workflow are ignored.
type Machine struct {
	mu    sync.Mutex
	state model.WorkflowState
}

// NewMachine creates an inactive machine with every stage pending.
func NewMachine() *Machine {
	return &Machine{state: blankState()}
}

func blankState() model.WorkflowState {
	stages := make(map[model.Stage]model.StageState, len(model.StageOrder))
	for _, s := range model.StageOrder {
		stages[s] = model.StageState{Status: model.StageStatusPending}
	}
	return model.WorkflowState{
		CurrentStage: model.StageUpload,
		Stages:       stages,
	}
}

// Start begins a fresh workflow for an asset at the upload stage. The
// upload itself already happened by the time a workflow exists, so that
// stage opens completed rather than pending.
func (m *Machine) Start(assetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = blankState()
	m.state.IsActive = true
	m.state.ActiveAssetID = assetID
	m.setStage(model.StageUpload, model.StageStatusCompleted, "", "")
	log.Printf("[Workflow] Started for asset %s", assetID)
}

// StartFromAsset resumes a workflow at a later stage, as when reopening
// an asset that already has a mesh. Stages before the entry stage are
// marked approved; the entry stage and everything after it are pending.
func (m *Machine) StartFromAsset(assetID string, stage model.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = blankState()
	m.state.IsActive = true
	m.state.ActiveAssetID = assetID
	m.state.CurrentStage = stage

	entry := stageIndex(stage)
	for i, s := range model.StageOrder {
		if i < entry {
			m.state.Stages[s] = model.StageState{Status: model.StageStatusApproved}
		}
	}
	log.Printf("[Workflow] Resumed asset %s at stage %s", assetID, stage)
}

// Cancel abandons the active workflow and resets every stage.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.IsActive {
		log.Printf("[Workflow] Cancelled for asset %s", m.state.ActiveAssetID)
	}
	m.state = blankState()
}

// SetStageStatus records a stage status directly, with an optional
// error message and the job id driving the stage.
func (m *Machine) SetStageStatus(stage model.Stage, status model.StageStatus, errText, jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStage(stage, status, errText, jobID)
}

// ApproveStage accepts the current stage's output and advances to the
// next stage. Approving the final stage leaves the workflow there.
func (m *Machine) ApproveStage() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.IsActive {
		return
	}
	cur := m.state.CurrentStage
	m.setStage(cur, model.StageStatusApproved, "", "")
	m.state.CurrentStage = nextStage(cur)
}

// SkipToExport approves the current stage, marks every stage between it
// and export as skipped, and jumps straight to export. Export itself
// resets to pending regardless of any earlier state it carried.
func (m *Machine) SkipToExport() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.IsActive {
		return
	}
	cur := m.state.CurrentStage
	m.setStage(cur, model.StageStatusApproved, "", "")

	from := stageIndex(cur)
	to := stageIndex(model.StageExport)
	for i := from + 1; i < to; i++ {
		m.setStage(model.StageOrder[i], model.StageStatusSkipped, "", "")
	}
	m.setStage(model.StageExport, model.StageStatusPending, "", "")
	m.state.CurrentStage = model.StageExport
}

// RedoStage rewinds the workflow to an earlier stage. The target stage
// and everything after it reset to pending; earlier approvals stand.
func (m *Machine) RedoStage(stage model.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.IsActive {
		return
	}
	from := stageIndex(stage)
	for i := from; i < len(model.StageOrder); i++ {
		m.setStage(model.StageOrder[i], model.StageStatusPending, "", "")
	}
	m.state.CurrentStage = stage
}

// Snapshot returns a deep copy of the current state.
func (m *Machine) Snapshot() model.WorkflowState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.state
	out.Stages = make(map[model.Stage]model.StageState, len(m.state.Stages))
	for k, v := range m.state.Stages {
		out.Stages[k] = v
	}
	return out
}

// ApplyUpdate folds a workflow_update event broadcast by the backend.
// Events for other assets, or arriving with no active workflow, are
// ignored.
func (m *Machine) ApplyUpdate(ev *model.WorkflowUpdateEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.matches(ev.AssetID) {
		return
	}
	stage := MapStage(ev.Stage)
	status := MapStatus(ev.Status)

	switch status {
	case model.StageStatusProcessing:
		m.setStage(stage, status, "", "")
		m.state.CurrentStage = stage
	case model.StageStatusCompleted:
		m.setStage(stage, status, "", "")
		m.state.CurrentStage = stage
	case model.StageStatusApproved:
		m.setStage(stage, status, "", "")
		m.state.CurrentStage = nextStage(stage)
	case model.StageStatusFailed:
		m.setStage(stage, status, ev.Message, "")
	case model.StageStatusSkipped:
		// Backend jumped this asset straight to export.
		m.setStage(stage, model.StageStatusApproved, "", "")
		from := stageIndex(stage)
		to := stageIndex(model.StageExport)
		for i := from + 1; i < to; i++ {
			m.setStage(model.StageOrder[i], model.StageStatusSkipped, "", "")
		}
		m.state.CurrentStage = model.StageExport
	}
}

// ApplyProgress folds a generation progress event into the workflow
// when it names the active asset.
func (m *Machine) ApplyProgress(ev *model.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.matches(ev.AssetID) {
		return
	}
	cur := m.state.CurrentStage
	switch ev.Status {
	case model.JobStatusProcessing:
		m.setStage(cur, model.StageStatusProcessing, "", ev.JobID)
	case model.JobStatusCompleted:
		m.setStage(cur, model.StageStatusCompleted, "", "")
	case model.JobStatusFailed:
		m.setStage(cur, model.StageStatusFailed, ev.Error, "")
	}
}

// ApplyError folds a protocol error event addressed to the active asset
// into the workflow: the current stage fails with the reported message.
func (m *Machine) ApplyError(ev *model.ErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.matches(ev.AssetID) {
		return
	}
	m.setStage(m.state.CurrentStage, model.StageStatusFailed, ev.Message, "")
}

// ApplyRiggingProgress marks the rigging stage as processing for the
// active asset.
func (m *Machine) ApplyRiggingProgress(ev *model.RiggingProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.matches(ev.AssetID) {
		return
	}
	m.setStage(model.StageRigging, model.StageStatusProcessing, "", ev.JobID)
	m.state.CurrentStage = model.StageRigging
}

// ApplyRiggingComplete marks the rigging stage completed.
func (m *Machine) ApplyRiggingComplete(ev *model.RiggingCompleteEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.matches(ev.AssetID) {
		return
	}
	m.setStage(model.StageRigging, model.StageStatusCompleted, "", "")
	m.state.CurrentStage = model.StageRigging
}

// ApplyRiggingFailed marks the rigging stage failed with the reported
// error.
func (m *Machine) ApplyRiggingFailed(ev *model.RiggingFailedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.matches(ev.AssetID) {
		return
	}
	m.setStage(model.StageRigging, model.StageStatusFailed, ev.Error, "")
}

// matches reports whether an event's asset id addresses the active
// workflow. Caller holds the lock.
func (m *Machine) matches(assetID string) bool {
	return m.state.IsActive && assetID != "" && assetID == m.state.ActiveAssetID
}

// setStage writes one stage entry. Caller holds the lock.
func (m *Machine) setStage(stage model.Stage, status model.StageStatus, errText, jobID string) {
	m.state.Stages[stage] = model.StageState{
		Status: status,
		Error:  errText,
		JobID:  jobID,
	}
}
