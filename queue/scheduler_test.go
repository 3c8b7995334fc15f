package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediapipe/progress"
	"mediapipe/types"
)

func newTestScheduler() (*Scheduler, *progress.Bus) {
	bus := progress.NewBus()
	return NewScheduler(bus), bus
}

func TestAddDownloadJobCanStartWhenIdle(t *testing.T) {
	s, bus := newTestScheduler()
	defer bus.Stop()

	id, canStart := s.AddDownloadJob("https://example.test/a", "22")
	assert.True(t, canStart)

	job, ok := s.GetJob(id)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusQueued, job.Status)
}

func TestSecondJobCannotStartWhileFirstActive(t *testing.T) {
	s, bus := newTestScheduler()
	defer bus.Stop()

	id1, canStart1 := s.AddDownloadJob("https://example.test/a", "22")
	require.True(t, canStart1)
	require.True(t, s.StartJob(id1, "dl-1"))

	id2, canStart2 := s.AddDownloadJob("https://example.test/b", "22")
	assert.False(t, canStart2)
	assert.False(t, s.StartJob(id2, "dl-2"))

	state := s.GetQueueState()
	assert.Equal(t, id1, state.Processing)
	assert.Contains(t, state.Queue, id2)
}

func TestCompleteJobClearsActiveAndDrainsNext(t *testing.T) {
	s, bus := newTestScheduler()
	defer bus.Stop()

	id1, _ := s.AddDownloadJob("https://example.test/a", "22")
	require.True(t, s.StartJob(id1, "dl-1"))

	id2, _ := s.AddDownloadJob("https://example.test/b", "22")

	s.CompleteJob(id1)

	state := s.GetQueueState()
	assert.Empty(t, state.Processing)
	require.Len(t, state.Queue, 1)
	assert.Equal(t, id2, state.Queue[0])
	assert.True(t, s.StartJob(id2, "dl-2"))
}

func TestDependencyCascadeFailure(t *testing.T) {
	s, bus := newTestScheduler()
	defer bus.Stop()

	dlID, _ := s.AddDownloadJob("https://example.test/a", "22")
	cvID, canStart, err := s.AddConvertJob("https://example.test/a", "mp3", dlID, "")
	require.NoError(t, err)
	assert.False(t, canStart)

	s.FailJob(dlID, "extractor spawn failed")

	cvJob, ok := s.GetJob(cvID)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusFailed, cvJob.Status)
	assert.Contains(t, cvJob.Error, "Dependency failed")

	state := s.GetQueueState()
	assert.NotContains(t, state.Queue, cvID)
}

func TestConvertJobStartsOnlyAfterDependencyCompletes(t *testing.T) {
	s, bus := newTestScheduler()
	defer bus.Stop()

	dlID, _ := s.AddDownloadJob("https://example.test/a", "22")
	require.True(t, s.StartJob(dlID, "dl-1"))

	cvID, _, err := s.AddConvertJob("https://example.test/a", "mp3", dlID, "")
	require.NoError(t, err)

	assert.False(t, s.StartJob(cvID, "dl-2"), "dependency not yet completed")

	s.CompleteJob(dlID)
	assert.True(t, s.StartJob(cvID, "dl-2"))
}

func TestAddConvertJobRejectsUnknownDependency(t *testing.T) {
	s, bus := newTestScheduler()
	defer bus.Stop()

	_, _, err := s.AddConvertJob("https://example.test/a", "mp3", "does-not-exist", "")
	assert.Error(t, err)
}

func TestCancelQueuedJobRemovesFromQueue(t *testing.T) {
	s, bus := newTestScheduler()
	defer bus.Stop()

	id1, _ := s.AddDownloadJob("https://example.test/a", "22")
	require.True(t, s.StartJob(id1, "dl-1"))
	id2, _ := s.AddDownloadJob("https://example.test/b", "22")

	assert.True(t, s.CancelJob(id2))

	job, ok := s.GetJob(id2)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "Cancelled by user")

	state := s.GetQueueState()
	assert.NotContains(t, state.Queue, id2)
}

func TestCancelActiveJobCancelsSessionAndDrains(t *testing.T) {
	s, bus := newTestScheduler()
	defer bus.Stop()

	id1, _ := s.AddDownloadJob("https://example.test/a", "22")
	require.True(t, s.StartJob(id1, "dl-1"))
	bus.CreateSession("https://example.test/a", "22", "dl-1")

	canceled := make(chan struct{}, 1)
	bus.RegisterCanceler("dl-1", func() { canceled <- struct{}{} })

	id2, _ := s.AddDownloadJob("https://example.test/b", "22")

	assert.True(t, s.CancelJob(id1))

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("expected session canceler to be invoked")
	}

	job, ok := s.GetJob(id1)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusFailed, job.Status)

	assert.True(t, s.StartJob(id2, "dl-2"))
}

func TestCompleteJobIsNoOpWhenAlreadyTerminal(t *testing.T) {
	s, bus := newTestScheduler()
	defer bus.Stop()

	id, _ := s.AddDownloadJob("https://example.test/a", "22")
	require.True(t, s.StartJob(id, "dl-1"))
	s.FailJob(id, "boom")
	s.CompleteJob(id)

	job, ok := s.GetJob(id)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.Error)
}
