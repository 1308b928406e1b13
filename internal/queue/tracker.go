package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/forge3d/realtime/internal/model"
)

// Tracker maintains the set of known generation jobs and the aggregate
// queue counters derived from them. It is fed exclusively by channel
// events and explicit submission results; it performs no I/O itself.
//
// Events may arrive out of order or more than once. Two guards keep the
// fold idempotent: status transitions are only accepted forward along
// pending -> queued -> processing -> terminal, and a job already in a
// terminal status ignores further terminal events. The one exception is
// the single correction allowed after an optimistic local cancel.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*trackedJob
	agg  model.QueueStatus
}

type trackedJob struct {
	job model.Job

	// optimistic marks a job cancelled locally before the server
	// confirmed it. Exactly one later server terminal status may
	// overwrite the guess.
	optimistic bool
}

func statusRank(s model.JobStatus) int {
	switch s {
	case model.JobStatusPending:
		return 0
	case model.JobStatusQueued:
		return 1
	case model.JobStatusProcessing:
		return 2
	default: // terminal
		return 3
	}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*trackedJob)}
}

// AddJob registers a job from a job_created event or a submission
// response. Re-adding a known id is a no-op.
func (t *Tracker) AddJob(job model.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.jobs[job.ID]; ok {
		return
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	t.jobs[job.ID] = &trackedJob{job: job}
	t.bucket(job.Status, +1)
	t.agg.TotalJobs = len(t.jobs)
	t.refreshSize()
}

// UpdateJobProgress folds a progress/stage update. Unknown job ids are
// ignored; a progress event must never create a job as a side effect.
func (t *Tracker) UpdateJobProgress(jobID string, progress float64, stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tj, ok := t.jobs[jobID]
	if !ok {
		return
	}
	if progress < 0 {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}
	tj.job.Progress = progress
	if stage != "" {
		tj.job.Stage = stage
	}
}

// UpdateJobStatus folds a status transition, adjusting the aggregate
// counters incrementally. Illegal transitions (backward moves, repeat
// terminal statuses) are no-ops.
func (t *Tracker) UpdateJobStatus(jobID string, status model.JobStatus, errText *string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tj, ok := t.jobs[jobID]
	if !ok {
		return
	}
	cur := tj.job.Status

	if cur.IsTerminal() {
		// Duplicate terminal delivery is a no-op. The one exception:
		// an optimistic local cancel yields to the server's verdict.
		if !tj.optimistic || !status.IsTerminal() {
			return
		}
		tj.optimistic = false
		if status == cur {
			return
		}
	} else {
		if status == cur {
			return
		}
		if statusRank(status) < statusRank(cur) {
			// Stale event from before the current state; drop it.
			return
		}
	}

	t.applyStatus(tj, status, errText)
}

// CancelJobLocally applies the optimistic cancelled status before the
// server confirms. A later server terminal event for this job is
// accepted once as a correction.
func (t *Tracker) CancelJobLocally(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tj, ok := t.jobs[jobID]
	if !ok || tj.job.Status.IsTerminal() {
		return
	}
	tj.optimistic = true
	t.applyStatus(tj, model.JobStatusCancelled, nil)
}

// applyStatus moves a job between status buckets. Caller holds the lock
// and has validated the transition.
func (t *Tracker) applyStatus(tj *trackedJob, status model.JobStatus, errText *string) {
	prev := tj.job.Status
	t.bucket(prev, -1)
	t.bucket(status, +1)
	tj.job.Status = status

	now := time.Now()
	switch status {
	case model.JobStatusProcessing:
		if tj.job.StartedAt == nil {
			tj.job.StartedAt = &now
		}
		t.agg.CurrentJobID = tj.job.ID
	case model.JobStatusCompleted:
		tj.job.Progress = 1
		fallthrough
	case model.JobStatusFailed, model.JobStatusCancelled:
		if tj.job.CompletedAt == nil {
			tj.job.CompletedAt = &now
		}
		if t.agg.CurrentJobID == tj.job.ID {
			t.agg.CurrentJobID = ""
		}
	}
	if errText != nil {
		tj.job.Error = errText
	}
	t.refreshSize()
}

// RemoveJob drops a job from tracking. Removal is always an explicit
// user action, never a timeout.
func (t *Tracker) RemoveJob(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tj, ok := t.jobs[jobID]
	if !ok {
		return
	}
	t.bucket(tj.job.Status, -1)
	delete(t.jobs, jobID)
	if t.agg.CurrentJobID == jobID {
		t.agg.CurrentJobID = ""
	}
	t.agg.TotalJobs = len(t.jobs)
	t.refreshSize()
}

// SetQueueStatus overwrites the aggregate with the server's snapshot.
// The server is authoritative; this self-heals any drift from events
// lost during a disconnect.
func (t *Tracker) SetQueueStatus(qs model.QueueStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agg = qs
}

// Status returns the current aggregate counters.
func (t *Tracker) Status() model.QueueStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.agg
}

// JobByID returns a copy of the job, if known.
func (t *Tracker) JobByID(jobID string) (model.Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tj, ok := t.jobs[jobID]
	if !ok {
		return model.Job{}, false
	}
	return tj.job, true
}

// Jobs returns all tracked jobs, newest first.
func (t *Tracker) Jobs() []model.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Job, 0, len(t.jobs))
	for _, tj := range t.jobs {
		out = append(out, tj.job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// JobsByStatus returns the jobs currently in the given status.
func (t *Tracker) JobsByStatus(status model.JobStatus) []model.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []model.Job
	for _, tj := range t.jobs {
		if tj.job.Status == status {
			out = append(out, tj.job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveJobIDs returns the ids of jobs that have not reached a terminal
// status, for the backup poll.
func (t *Tracker) ActiveJobIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for id, tj := range t.jobs {
		if !tj.job.Status.IsTerminal() {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Recount rebuilds the aggregate by scanning every job. It exists as a
// correctness check against the incrementally maintained counters, not
// as the normal update path.
func (t *Tracker) Recount() model.QueueStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var qs model.QueueStatus
	for _, tj := range t.jobs {
		switch tj.job.Status {
		case model.JobStatusPending, model.JobStatusQueued:
			qs.PendingCount++
		case model.JobStatusProcessing:
			qs.ProcessingCount++
			qs.CurrentJobID = tj.job.ID
		case model.JobStatusCompleted:
			qs.CompletedCount++
		case model.JobStatusFailed:
			qs.FailedCount++
		}
	}
	qs.QueueSize = qs.PendingCount + qs.ProcessingCount
	qs.TotalJobs = len(t.jobs)
	return qs
}

func (t *Tracker) bucket(status model.JobStatus, delta int) {
	switch status {
	case model.JobStatusPending, model.JobStatusQueued:
		t.agg.PendingCount += delta
	case model.JobStatusProcessing:
		t.agg.ProcessingCount += delta
	case model.JobStatusCompleted:
		t.agg.CompletedCount += delta
	case model.JobStatusFailed:
		t.agg.FailedCount += delta
	}
	if t.agg.PendingCount < 0 {
		t.agg.PendingCount = 0
	}
	if t.agg.ProcessingCount < 0 {
		t.agg.ProcessingCount = 0
	}
}

func (t *Tracker) refreshSize() {
	t.agg.QueueSize = t.agg.PendingCount + t.agg.ProcessingCount
}
