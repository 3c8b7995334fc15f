// Package queue implements the job queue and scheduler that sits in front
// of the extractor client: it admits download and convert jobs, enforces a
// single active job, resolves cross-job dependencies, and always drains to
// the next runnable job after a terminal transition.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediapipe/progress"
	"mediapipe/types"
)

// Scheduler owns all job state, guarded by mu. Admissions (AddDownloadJob,
// and AddConvertJob once its dependency check passes) and terminal
// transitions (CompleteJob, FailJob, CancelJob) invoke the drain routine
// before returning; CompleteJob and FailJob do so via defer, so it runs on
// every one of their exit paths. CancelJob releases mu while the progress
// bus cancels the session, then re-acquires it to drain. StartJob does not
// drain.
type Scheduler struct {
	mu        sync.Mutex
	jobs      map[string]*types.Job
	queue     []string
	activeJob string // "" means no active job

	bus      *progress.Bus
	onChange func(types.QueueState)
}

// NewScheduler builds a Scheduler wired to bus for session cancellation and
// progress mirroring.
func NewScheduler(bus *progress.Bus) *Scheduler {
	return &Scheduler{
		jobs:  make(map[string]*types.Job),
		queue: make([]string, 0),
		bus:   bus,
	}
}

// OnChange registers a callback invoked with a fresh snapshot after every
// emitted queue-state change. Intended for the supplemental websocket
// dashboard broadcast; at most one callback is kept.
func (s *Scheduler) OnChange(fn func(types.QueueState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// AddDownloadJob admits a queued download job and runs the drain routine.
func (s *Scheduler) AddDownloadJob(url, formatID string) (jobID string, canStart bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.processQueueLocked()

	job := &types.Job{
		ID:        uuid.NewString(),
		Kind:      types.JobKindDownload,
		URL:       url,
		FormatID:  formatID,
		Status:    types.JobStatusQueued,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	s.queue = append(s.queue, job.ID)

	canStart = s.activeJob == "" && len(s.queue) > 0 && s.queue[0] == job.ID
	s.emitSnapshotLocked()
	return job.ID, canStart
}

// AddConvertJob admits a queued convert job. If dependsOn is non-empty it
// must name an existing download job; otherwise an error is returned and no
// job is created.
func (s *Scheduler) AddConvertJob(url, targetFormat, dependsOn, inputFile string) (jobID string, canStart bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dependsOn != "" {
		dep, ok := s.jobs[dependsOn]
		if !ok || dep.Kind != types.JobKindDownload {
			return "", false, fmt.Errorf("dependsOn %q does not name an existing download job", dependsOn)
		}
	}
	defer s.processQueueLocked()

	job := &types.Job{
		ID:           uuid.NewString(),
		Kind:         types.JobKindConvert,
		URL:          url,
		TargetFormat: targetFormat,
		DependsOn:    dependsOn,
		InputFile:    inputFile,
		Status:       types.JobStatusQueued,
		CreatedAt:    time.Now(),
	}
	s.jobs[job.ID] = job
	s.queue = append(s.queue, job.ID)

	canStart = s.activeJob == "" && len(s.queue) > 0 && s.queue[0] == job.ID && s.dependencySatisfiedLocked(job)
	s.emitSnapshotLocked()
	return job.ID, canStart, nil
}

func (s *Scheduler) dependencySatisfiedLocked(job *types.Job) bool {
	if job.DependsOn == "" {
		return true
	}
	dep, ok := s.jobs[job.DependsOn]
	return ok && dep.Status == types.JobStatusCompleted
}

// StartJob atomically admits jobID into the active slot if it is the queue
// head, no job is active, and its dependency (if any) is satisfied.
func (s *Scheduler) StartJob(jobID, downloadID string) bool {
	s.mu.Lock()

	job, ok := s.jobs[jobID]
	if !ok || s.activeJob != "" || len(s.queue) == 0 || s.queue[0] != jobID || !s.dependencySatisfiedLocked(job) {
		s.mu.Unlock()
		return false
	}

	s.queue = s.queue[1:]
	s.activeJob = jobID
	now := time.Now()
	job.StartedAt = &now
	job.DownloadID = downloadID
	if job.Kind == types.JobKindConvert {
		job.Status = types.JobStatusConverting
	} else {
		job.Status = types.JobStatusDownloading
	}
	s.emitSnapshotLocked()
	s.mu.Unlock()

	go s.mirrorProgress(jobID, downloadID)
	return true
}

// CompleteJob transitions jobID to completed. A no-op if the job is already
// terminal or unknown.
func (s *Scheduler) CompleteJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.processQueueLocked()

	job, ok := s.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.Status = types.JobStatusCompleted
	job.CompletedAt = &now
	if s.activeJob == jobID {
		s.activeJob = ""
	}
	s.emitSnapshotLocked()
}

// FailJob transitions jobID to failed with errMsg, cascading failure to any
// queued convert jobs that depend on it. A no-op if the job is already
// terminal or unknown.
func (s *Scheduler) FailJob(jobID, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.processQueueLocked()

	job, ok := s.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.Status = types.JobStatusFailed
	job.Error = errMsg
	job.CompletedAt = &now
	if s.activeJob == jobID {
		s.activeJob = ""
	}
	s.cascadeFailLocked(jobID, errMsg)
	s.emitSnapshotLocked()
}

// cascadeFailLocked fails every non-terminal job that (transitively)
// depends on jobID, per the dependency-failure propagation rule.
func (s *Scheduler) cascadeFailLocked(jobID, cause string) {
	for _, dependent := range s.jobs {
		if dependent.DependsOn != jobID || dependent.Status.Terminal() {
			continue
		}
		s.removeFromQueueLocked(dependent.ID)
		now := time.Now()
		dependent.Status = types.JobStatusFailed
		dependent.Error = fmt.Sprintf("Dependency failed: %s", cause)
		dependent.CompletedAt = &now
		s.cascadeFailLocked(dependent.ID, dependent.Error)
	}
}

// CancelJob cancels a queued or active job. Queued jobs are simply removed;
// an active job's session is cancelled via the progress bus, which
// terminates the backing process. Returns false only if jobID is unknown.
func (s *Scheduler) CancelJob(jobID string) bool {
	s.mu.Lock()

	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if job.Status.Terminal() {
		s.mu.Unlock()
		return true
	}

	wasActive := s.activeJob == jobID
	downloadID := job.DownloadID
	if !wasActive {
		s.removeFromQueueLocked(jobID)
	}

	now := time.Now()
	job.Status = types.JobStatusFailed
	job.Error = "Cancelled by user"
	job.CompletedAt = &now
	if wasActive {
		s.activeJob = ""
	}
	s.emitSnapshotLocked()
	s.mu.Unlock()

	if wasActive && downloadID != "" {
		s.bus.Cancel(downloadID)
	}

	s.mu.Lock()
	s.processQueueLocked()
	s.mu.Unlock()
	return true
}

func (s *Scheduler) removeFromQueueLocked(jobID string) {
	for i, id := range s.queue {
		if id == jobID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// GetQueueState returns the current snapshot.
func (s *Scheduler) GetQueueState() types.QueueState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// GetJob returns a copy of jobID's job, if known.
func (s *Scheduler) GetJob(jobID string) (*types.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// processQueueLocked is the drain routine. Must be called with mu held. It
// never starts a job itself (that remains StartJob's job, invoked by the
// HTTP edge) — it only clears stale queue entries and, once the head is
// runnable, emits a fresh snapshot so callers know to retry StartJob.
func (s *Scheduler) processQueueLocked() {
	for {
		if s.activeJob != "" || len(s.queue) == 0 {
			return
		}
		head := s.queue[0]
		job, ok := s.jobs[head]
		if !ok {
			s.queue = s.queue[1:]
			continue
		}
		if !s.dependencySatisfiedLocked(job) {
			s.emitSnapshotLocked()
			return
		}
		s.emitSnapshotLocked()
		return
	}
}

func (s *Scheduler) snapshotLocked() types.QueueState {
	jobs := make(map[string]*types.Job, len(s.jobs))
	counts := make(map[types.JobStatus]int)
	for id, j := range s.jobs {
		jobs[id] = j.Clone()
		counts[j.Status]++
	}
	queue := make([]string, len(s.queue))
	copy(queue, s.queue)
	return types.QueueState{
		Jobs:       jobs,
		Queue:      queue,
		Processing: s.activeJob,
		Counts:     counts,
	}
}

func (s *Scheduler) emitSnapshotLocked() {
	if s.onChange == nil {
		return
	}
	snap := s.snapshotLocked()
	go s.onChange(snap)
}

// mirrorProgress subscribes to bus events for downloadID and mirrors them
// onto jobs[jobID].progress, triggering the job's terminal transition when
// the underlying session completes, errors, or is cancelled.
func (s *Scheduler) mirrorProgress(jobID, downloadID string) {
	events, unsubscribe := s.bus.Subscribe(downloadID)
	defer unsubscribe()

	for event := range events {
		if event.Type != types.EventProgress {
			continue
		}

		s.mu.Lock()
		job, ok := s.jobs[jobID]
		if ok && !job.Status.Terminal() {
			job.Progress = &types.JobProgress{
				Bytes:      event.BytesDownloaded,
				Total:      event.TotalBytes,
				Percentage: event.Percentage,
				Status:     event.Status,
			}
		}
		s.mu.Unlock()

		switch types.SessionStatus(event.Status) {
		case types.SessionCompleted:
			s.CompleteJob(jobID)
			return
		case types.SessionError:
			s.FailJob(jobID, event.Error)
			return
		case types.SessionCancelled:
			s.FailJob(jobID, "Cancelled by user")
			return
		}
	}
}
