package types

import "time"

// SessionStatus is the lifecycle state of a DownloadSession. Once it enters
// a terminal state it never changes again.
type SessionStatus string

const (
	SessionDownloading SessionStatus = "downloading"
	SessionCompleted   SessionStatus = "completed"
	SessionError       SessionStatus = "error"
	SessionCancelled   SessionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transition.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionError || s == SessionCancelled
}

// DownloadSession is per-download state held by the progress bus.
type DownloadSession struct {
	DownloadID string        `json:"downloadId"`
	URL        string        `json:"url"`
	FormatID   string        `json:"formatId"`
	Bytes      int64         `json:"bytes"`
	Total      *int64        `json:"total,omitempty"`
	Percentage *int          `json:"percentage,omitempty"`
	Status     SessionStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Snapshot returns a value copy safe to hand outside the bus lock.
func (s *DownloadSession) Snapshot() *DownloadSession {
	cp := *s
	if s.Total != nil {
		t := *s.Total
		cp.Total = &t
	}
	if s.Percentage != nil {
		p := *s.Percentage
		cp.Percentage = &p
	}
	return &cp
}

// ProgressEventKind enumerates the SSE message kinds on /progress/{id}.
type ProgressEventKind string

const (
	EventConnected ProgressEventKind = "connected"
	EventProgress  ProgressEventKind = "progress"
	EventHeartbeat ProgressEventKind = "heartbeat"
)

// ProgressEvent is one message on the progress push stream. Fields that do
// not apply to a given Kind are omitted from JSON via omitempty.
type ProgressEvent struct {
	Type            ProgressEventKind `json:"type"`
	DownloadID      string            `json:"downloadId,omitempty"`
	BytesDownloaded int64             `json:"bytesDownloaded,omitempty"`
	TotalBytes      *int64            `json:"totalBytes,omitempty"`
	Percentage      *int              `json:"percentage,omitempty"`
	Status          string            `json:"status,omitempty"`
	Error           string            `json:"error,omitempty"`
}
