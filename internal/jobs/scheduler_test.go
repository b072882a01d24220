package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyticshub/internal/testsupport"
)

var _ cartridge.BackgroundWorker = (*Scheduler)(nil)

type countingJob struct {
	runs  atomic.Int32
	err   error
	panic bool
	block chan struct{}
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	if j.panic {
		panic("boom")
	}
	return j.err
}

func TestSchedulerRunsImmediatelyAndOnInterval(t *testing.T) {
	job := &countingJob{}
	s := NewScheduler(testsupport.GetLogger(), 10*time.Millisecond, job)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return job.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	after := job.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, job.runs.Load())
}

func TestSchedulerDisabled(t *testing.T) {
	job := &countingJob{}
	s := NewScheduler(testsupport.GetLogger(), 0, job)

	require.NoError(t, s.Start())
	assert.False(t, s.IsRunning())
	s.Stop()
	assert.Equal(t, int32(0), job.runs.Load())
}

func TestSchedulerSurvivesErrorsAndPanics(t *testing.T) {
	failing := &countingJob{err: errors.New("disk full")}
	panicking := &countingJob{panic: true}
	s := NewScheduler(testsupport.GetLogger(), 10*time.Millisecond, failing, panicking)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool {
		return failing.runs.Load() >= 2 && panicking.runs.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestExecuteJobSafelySkipsOverlap(t *testing.T) {
	job := &countingJob{block: make(chan struct{})}
	s := NewScheduler(testsupport.GetLogger(), time.Hour, job)

	done := make(chan struct{})
	go func() {
		s.executeJobSafely(job)
		close(done)
	}()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	s.executeJobSafely(job)
	assert.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	<-done
}

func TestMaintenanceJob(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	job := NewMaintenanceJob(dbManager, logger)

	assert.Equal(t, "warehouse_maintenance", job.Name())
	assert.NoError(t, job.Run(context.Background()))
}
