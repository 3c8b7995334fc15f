package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediapipe/types"
)

func TestCreateSessionIdempotent(t *testing.T) {
	b := NewBus()
	defer b.Stop()

	id := b.CreateSession("https://example.test", "22", "dl-1")
	b.UpdateProgress(id, 100, nil)
	b.CreateSession("https://example.test", "22", "dl-1")

	snap := b.GetProgress(id)
	require.NotNil(t, snap)
	assert.EqualValues(t, 100, snap.Bytes)
}

func TestUpdateProgressComputesPercentage(t *testing.T) {
	b := NewBus()
	defer b.Stop()

	id := b.CreateSession("https://example.test", "22", "dl-2")
	total := int64(200)
	b.UpdateProgress(id, 50, &total)

	snap := b.GetProgress(id)
	require.NotNil(t, snap.Percentage)
	assert.Equal(t, 25, *snap.Percentage)
}

func TestTerminalIsSticky(t *testing.T) {
	b := NewBus()
	defer b.Stop()

	id := b.CreateSession("https://example.test", "22", "dl-3")
	b.MarkCompleted(id)
	b.MarkError(id, "should not apply")

	snap := b.GetProgress(id)
	assert.Equal(t, types.SessionCompleted, snap.Status)
	assert.Empty(t, snap.Error)
}

func TestSubscribeReceivesConnectedThenProgress(t *testing.T) {
	b := NewBus()
	defer b.Stop()

	id := b.CreateSession("https://example.test", "22", "dl-4")
	events, unsub := b.Subscribe(id)
	defer unsub()

	first := <-events
	assert.Equal(t, types.EventConnected, first.Type)

	second := <-events
	assert.Equal(t, types.EventProgress, second.Type)

	total := int64(10)
	b.UpdateProgress(id, 5, &total)
	third := <-events
	assert.Equal(t, types.EventProgress, third.Type)
	assert.EqualValues(t, 5, third.BytesDownloaded)
}

func TestCancelInvokesCancelerAndMarksCancelled(t *testing.T) {
	b := NewBus()
	defer b.Stop()

	id := b.CreateSession("https://example.test", "22", "dl-5")
	called := make(chan struct{}, 1)
	b.RegisterCanceler(id, func() { called <- struct{}{} })

	b.Cancel(id)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("canceler was not invoked")
	}

	snap := b.GetProgress(id)
	assert.Equal(t, types.SessionCancelled, snap.Status)
	assert.Contains(t, snap.Error, "Cancelled")
}

func TestNoProgressAfterTerminalOnSameSubscription(t *testing.T) {
	b := NewBus()
	defer b.Stop()

	id := b.CreateSession("https://example.test", "22", "dl-6")
	events, unsub := b.Subscribe(id)
	defer unsub()

	<-events // connected
	<-events // initial snapshot

	b.MarkCompleted(id)
	final := <-events
	assert.Equal(t, types.EventProgress, final.Type)
	assert.Equal(t, "completed", final.Status)

	b.UpdateProgress(id, 999, nil) // must be a no-op: already terminal
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after terminal: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
