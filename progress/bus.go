// Package progress implements the process-wide registry of download
// sessions and the publish/subscribe fan-out of their progress events.
// It owns no subprocesses itself — callers register a
// CancelFunc that the bus invokes when a session is cancelled. Session GC
// removes only terminal sessions and does not invoke the CancelFunc.
package progress

import (
	"log"
	"sync"
	"time"

	"mediapipe/config"
	"mediapipe/types"
)

// CancelFunc terminates whatever process or stream backs a session. It must
// be idempotent; the bus may call it more than once.
type CancelFunc func()

const subscriberBuffer = 64

type subscription struct {
	ch   chan types.ProgressEvent
	done chan struct{}
}

type entry struct {
	session     *types.DownloadSession
	cancel      CancelFunc
	subscribers map[*subscription]struct{}
	terminalAt  time.Time
}

// Bus is the progress registry and event fan-out for in-flight sessions.
type Bus struct {
	mu      sync.Mutex
	entries map[string]*entry
	stop    chan struct{}
}

// NewBus creates a Bus and starts its background session GC.
func NewBus() *Bus {
	b := &Bus{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	go b.gcLoop()
	return b
}

// Stop halts the background GC loop. Intended for tests and graceful shutdown.
func (b *Bus) Stop() {
	close(b.stop)
}

// CreateSession is idempotent on an existing id: if id already names a
// session, the existing one is left untouched.
func (b *Bus) CreateSession(url, formatID, id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.entries[id]; exists {
		return id
	}

	b.entries[id] = &entry{
		session: &types.DownloadSession{
			DownloadID: id,
			URL:        url,
			FormatID:   formatID,
			Status:     types.SessionDownloading,
			CreatedAt:  time.Now(),
		},
		subscribers: make(map[*subscription]struct{}),
	}
	return id
}

// RegisterCanceler attaches the termination callback for a session's
// backing process/stream, used by Cancel.
func (b *Bus) RegisterCanceler(id string, cancel CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[id]; ok {
		e.cancel = cancel
	}
}

// UpdateProgress recomputes percentage when total is known and publishes a
// progress event. bytes must be monotonically non-decreasing for a given id;
// callers are responsible for that invariant (the extractor's byte counter
// guarantees it).
func (b *Bus) UpdateProgress(id string, bytes int64, total *int64) {
	b.mu.Lock()
	e, ok := b.entries[id]
	if !ok || e.session.Status.Terminal() {
		b.mu.Unlock()
		return
	}

	e.session.Bytes = bytes
	if total != nil {
		t := *total
		e.session.Total = &t
		pct := int(float64(bytes) / float64(t) * 100)
		if pct > 100 {
			pct = 100
		}
		e.session.Percentage = &pct
	}

	event := types.ProgressEvent{
		Type:            types.EventProgress,
		DownloadID:      id,
		BytesDownloaded: bytes,
		TotalBytes:      e.session.Total,
		Percentage:      e.session.Percentage,
		Status:          string(e.session.Status),
	}
	b.publishLocked(e, event)
	b.mu.Unlock()
}

// markTerminal is shared by MarkCompleted/MarkError/Cancel. A second
// terminal mark on an already-terminal session is a no-op.
func (b *Bus) markTerminal(id string, status types.SessionStatus, errMsg string) {
	b.mu.Lock()
	e, ok := b.entries[id]
	if !ok || e.session.Status.Terminal() {
		b.mu.Unlock()
		return
	}

	e.session.Status = status
	e.session.Error = errMsg
	e.terminalAt = time.Now()

	pct := e.session.Percentage
	if status == types.SessionCompleted {
		full := 100
		pct = &full
		e.session.Percentage = &full
	}

	event := types.ProgressEvent{
		Type:            types.EventProgress,
		DownloadID:      id,
		BytesDownloaded: e.session.Bytes,
		TotalBytes:      e.session.Total,
		Percentage:      pct,
		Status:          string(status),
		Error:           errMsg,
	}
	b.publishLocked(e, event)
	b.mu.Unlock()
}

// MarkCompleted sets the session terminal on success.
func (b *Bus) MarkCompleted(id string) {
	b.markTerminal(id, types.SessionCompleted, "")
}

// MarkError sets the session terminal on failure.
func (b *Bus) MarkError(id, msg string) {
	b.markTerminal(id, types.SessionError, msg)
}

// Cancel terminates the session's backing process (graceful then forceful,
// per the registered CancelFunc's own contract), marks it cancelled, and
// schedules removal after a short grace period.
func (b *Bus) Cancel(id string) {
	b.mu.Lock()
	e, ok := b.entries[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	cancel := e.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	b.markTerminal(id, types.SessionCancelled, "Cancelled by user")

	go func() {
		time.Sleep(config.SessionCancelGrace)
		b.mu.Lock()
		delete(b.entries, id)
		b.mu.Unlock()
	}()
}

// GetProgress returns a snapshot of the session, or nil if unknown.
func (b *Bus) GetProgress(id string) *types.DownloadSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return nil
	}
	return e.session.Snapshot()
}

// Subscribe opens an event stream for id. The returned channel receives a
// connected event immediately, then progress/heartbeat events as they
// occur. unsubscribe must be called exactly once to release resources.
func (b *Bus) Subscribe(id string) (events <-chan types.ProgressEvent, unsubscribe func()) {
	sub := &subscription{
		ch:   make(chan types.ProgressEvent, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	e, ok := b.entries[id]
	if ok {
		e.subscribers[sub] = struct{}{}
	}
	b.mu.Unlock()

	sub.ch <- types.ProgressEvent{Type: types.EventConnected, DownloadID: id}
	if ok {
		snap := e.session.Snapshot()
		sub.ch <- types.ProgressEvent{
			Type:            types.EventProgress,
			DownloadID:      id,
			BytesDownloaded: snap.Bytes,
			TotalBytes:      snap.Total,
			Percentage:      snap.Percentage,
			Status:          string(snap.Status),
			Error:           snap.Error,
		}
	}

	go func() {
		ticker := time.NewTicker(config.ProgressHeartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case sub.ch <- types.ProgressEvent{Type: types.EventHeartbeat}:
				default:
				}
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			close(sub.done)
			b.mu.Lock()
			if ok {
				delete(e.subscribers, sub)
			}
			b.mu.Unlock()
		})
	}

	return sub.ch, unsubscribe
}

// publishLocked fans an event out to every subscriber of e. For a subscriber
// whose buffer is full it drops the oldest buffered event to make room,
// rather than dropping the newest (possibly terminal) event. Must be called
// with b.mu held.
func (b *Bus) publishLocked(e *entry, event types.ProgressEvent) {
	for sub := range e.subscribers {
		select {
		case sub.ch <- event:
		default:
			// Slow consumer: drop one buffered event to make room, favoring
			// delivery of the newest state (which, for a terminal event, is
			// the one that matters most).
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
				log.Printf("progress: dropping event for subscriber of %s, channel still full", event.DownloadID)
			}
		}
	}
}

func (b *Bus) gcLoop() {
	ticker := time.NewTicker(config.SessionGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.gcOnce()
		case <-b.stop:
			return
		}
	}
}

func (b *Bus) gcOnce() {
	cutoff := time.Now().Add(-config.SessionGCAge)
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, e := range b.entries {
		if e.session.Status.Terminal() && e.terminalAt.Before(cutoff) {
			delete(b.entries, id)
		}
	}
}
