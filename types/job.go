package types

import "time"

// JobKind distinguishes a download job from a convert job.
type JobKind string

const (
	JobKindDownload JobKind = "download"
	JobKindConvert  JobKind = "convert"
)

// JobStatus is the lifecycle state of a Job. Transitions follow
// queued -> {downloading|converting} -> {completed|failed}, or a direct
// queued -> failed on cancellation or dependency failure.
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusConverting  JobStatus = "converting"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Active reports whether a job in this status occupies the single active slot.
func (s JobStatus) Active() bool {
	return s == JobStatusDownloading || s == JobStatusConverting
}

// JobProgress mirrors the subset of a DownloadSession a Job exposes to clients.
type JobProgress struct {
	Bytes      int64  `json:"bytes"`
	Total      *int64 `json:"total,omitempty"`
	Percentage *int   `json:"percentage,omitempty"`
	Status     string `json:"status"`
}

// Job is a scheduler-owned unit of admitted work.
type Job struct {
	ID           string       `json:"jobId"`
	Kind         JobKind      `json:"kind"`
	URL          string       `json:"url,omitempty"`
	FormatID     string       `json:"formatId,omitempty"`
	TargetFormat string       `json:"targetFormat,omitempty"`
	DependsOn    string       `json:"dependsOn,omitempty"`
	InputFile    string       `json:"inputFile,omitempty"`
	Status       JobStatus    `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	StartedAt    *time.Time   `json:"startedAt,omitempty"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	Error        string       `json:"error,omitempty"`
	DownloadID   string       `json:"downloadId,omitempty"`
	Progress     *JobProgress `json:"progress,omitempty"`
}

// Clone returns a value copy safe to hand to callers outside the scheduler lock.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Progress != nil {
		p := *j.Progress
		cp.Progress = &p
	}
	return &cp
}

// QueueState is the derived, emitted-after-every-mutation view of the scheduler.
type QueueState struct {
	Jobs       map[string]*Job   `json:"jobs"`
	Queue      []string          `json:"queue"`
	Processing string            `json:"processing,omitempty"`
	Counts     map[JobStatus]int `json:"counts"`
}
