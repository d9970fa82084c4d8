package queue_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowtunes/slowtunes/internal/queue"
)

func newTestQueue() *queue.Queue {
	return queue.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// TestFIFOOrderNoOverlap enqueues three jobs and asserts they start in
// submission order, one at a time.
func TestFIFOOrderNoOverlap(t *testing.T) {
	q := newTestQueue()

	var (
		mu      sync.Mutex
		started []int
		running int
		overlap bool
	)
	var wg sync.WaitGroup

	makeJob := func(n int) queue.Job {
		return queue.Job{
			UserID: uint64(n),
			Run: func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > 1 {
					overlap = true
				}
				started = append(started, n)
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				wg.Done()
				return nil
			},
		}
	}

	wg.Add(3)
	assert.Equal(t, 1, q.Enqueue(makeJob(1)))
	assert.Equal(t, 2, q.Enqueue(makeJob(2)))
	assert.Equal(t, 3, q.Enqueue(makeJob(3)))

	go q.Start(context.Background())
	wg.Wait()
	q.Stop()
	<-q.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, started)
	assert.False(t, overlap, "jobs must never run concurrently")
	assert.Equal(t, 0, q.Depth())
}

// TestWorkerSurvivesFailuresAndPanics runs a failing job and a panicking job
// before a good one; the loop must reach the good one regardless.
func TestWorkerSurvivesFailuresAndPanics(t *testing.T) {
	q := newTestQueue()

	done := make(chan struct{})
	q.Enqueue(queue.Job{Run: func(ctx context.Context) error {
		return assert.AnError
	}})
	q.Enqueue(queue.Job{Run: func(ctx context.Context) error {
		panic("boom")
	}})
	q.Enqueue(queue.Job{Run: func(ctx context.Context) error {
		close(done)
		return nil
	}})

	go q.Start(context.Background())
	defer q.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker loop did not survive a failing/panicking job")
	}
}

// TestStopDrainsCurrentJob verifies stop is cooperative: the in-flight job
// finishes before the loop exits.
func TestStopDrainsCurrentJob(t *testing.T) {
	q := newTestQueue()

	jobStarted := make(chan struct{})
	jobFinished := false
	var mu sync.Mutex

	q.Enqueue(queue.Job{Run: func(ctx context.Context) error {
		close(jobStarted)
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		jobFinished = true
		mu.Unlock()
		return nil
	}})

	go q.Start(context.Background())

	<-jobStarted
	q.Stop()

	select {
	case <-q.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, jobFinished, "in-flight job must complete before the loop exits")
}

func TestInFlightByUser(t *testing.T) {
	q := newTestQueue()

	release := make(chan struct{})
	blocker := func(ctx context.Context) error {
		<-release
		return nil
	}

	q.Enqueue(queue.Job{UserID: 1, Run: blocker})
	q.Enqueue(queue.Job{UserID: 1, Run: blocker})
	q.Enqueue(queue.Job{UserID: 2, Run: blocker})

	snapshot := q.InFlightByUser()
	assert.Equal(t, map[uint64]int{1: 2, 2: 1}, snapshot)

	// mutating the snapshot must not affect the queue
	snapshot[1] = 99
	assert.Equal(t, 2, q.InFlightByUser()[1])

	close(release)
	q.Stop()
}

// TestShutdownDoesNotCancelRunningJob covers the drain guarantee from the
// context side: canceling the Start context mid-job must not propagate into
// the job's own context, or a download or ffmpeg run would be killed on
// SIGTERM instead of finishing.
func TestShutdownDoesNotCancelRunningJob(t *testing.T) {
	q := newTestQueue()
	ctx, cancel := context.WithCancel(context.Background())

	jobStarted := make(chan struct{})
	var sawCancel bool
	var mu sync.Mutex

	q.Enqueue(queue.Job{UserID: 1, Run: func(jobCtx context.Context) error {
		close(jobStarted)
		select {
		case <-jobCtx.Done():
			mu.Lock()
			sawCancel = true
			mu.Unlock()
			return jobCtx.Err()
		case <-time.After(100 * time.Millisecond):
			return nil
		}
	}})

	go q.Start(ctx)

	<-jobStarted
	cancel()

	select {
	case <-q.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, sawCancel, "in-flight job must drain, not observe shutdown cancellation")
	assert.Equal(t, 0, q.Depth())
}

func TestContextCancelStopsWorker(t *testing.T) {
	q := newTestQueue()
	ctx, cancel := context.WithCancel(context.Background())

	go q.Start(ctx)
	cancel()

	select {
	case <-q.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context cancellation did not stop the worker")
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	q := newTestQueue()

	// no worker running at all; a burst of enqueues must return immediately
	start := time.Now()
	for i := 0; i < 1000; i++ {
		q.Enqueue(queue.Job{Run: func(ctx context.Context) error { return nil }})
	}
	require.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1000, q.Depth())
}
