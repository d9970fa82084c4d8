// Package queue implements the single-worker job queue that serializes
// expensive transcode work. One long-lived worker drains jobs in strict FIFO
// order, so CPU-heavy processing never runs concurrently with itself and host
// load stays predictable.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Job is a deferred unit of work capturing its own arguments. Run reports
// failures to its own submitter and releases its own resources; the queue
// only schedules it.
type Job struct {
	ID     string
	UserID uint64
	Run    func(ctx context.Context) error
}

// Queue is an unbounded FIFO with one worker. Enqueue never blocks; Stop is
// cooperative and lets the in-flight job finish.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Job
	byUser  map[uint64]int // pending + running jobs per user
	depth   int            // pending + running jobs total
	stopped bool
	seq     uint64

	done chan struct{}
	log  *slog.Logger
}

// New creates a Queue. The worker does not run until Start is called.
func New(log *slog.Logger) *Queue {
	q := &Queue{
		byUser: make(map[uint64]int),
		done:   make(chan struct{}),
		log:    log,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job and returns its queue position: the total number of
// jobs now pending or running. 1 means the job runs next with no wait; a
// larger value is worth surfacing to the submitter as a queue notice.
func (q *Queue) Enqueue(j Job) int {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		q.log.Warn("enqueue after stop, job will not run", "job_id", j.ID)
	}

	q.pending = append(q.pending, j)
	q.depth++
	q.byUser[j.UserID]++
	q.cond.Signal()

	q.log.Debug("job enqueued", "job_id", j.ID, "user_id", j.UserID, "position", q.depth)
	return q.depth
}

// Start runs the worker loop until Stop is called or ctx is canceled. Each
// job runs to completion before the next one is pulled. A failing or
// panicking job is logged and never kills the loop.
func (q *Queue) Start(ctx context.Context) {
	q.log.Info("start tasks queue")

	// cond.Wait cannot watch ctx, so translate cancellation into Stop
	go func() {
		<-ctx.Done()
		q.Stop()
	}()

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if q.stopped {
			q.mu.Unlock()
			break
		}
		job := q.pending[0]
		q.pending = q.pending[1:]
		q.seq++
		seq := q.seq
		q.mu.Unlock()

		// the job runs detached from the shutdown signal: cancellation only
		// stops the loop from pulling the next job, the in-flight one drains
		q.runJob(context.WithoutCancel(ctx), job, seq)

		q.mu.Lock()
		q.depth--
		if q.byUser[job.UserID]--; q.byUser[job.UserID] <= 0 {
			delete(q.byUser, job.UserID)
		}
		q.mu.Unlock()
	}

	q.log.Info("tasks queue stopped")
	close(q.done)
}

func (q *Queue) runJob(ctx context.Context, job Job, seq uint64) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("panic in queue job", "seq", seq, "job_id", job.ID, "panic", r)
		}
	}()

	q.log.Debug("run job", "seq", seq, "job_id", job.ID, "user_id", job.UserID)
	if err := job.Run(ctx); err != nil {
		q.log.Error("queue job failed", "seq", seq, "job_id", job.ID, "err", err)
		return
	}
	q.log.Debug("job done", "seq", seq, "job_id", job.ID)
}

// Stop makes the worker exit after the current job finishes. Safe to call
// more than once.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	q.cond.Broadcast()
}

// Done is closed once the worker loop has fully drained and exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Depth returns the number of jobs pending or running.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// InFlightByUser snapshots the queue's own live view of per-user pending and
// running jobs. The admission reconciler treats this as the source of truth
// when clamping durable counters left behind by a crashed worker.
func (q *Queue) InFlightByUser() map[uint64]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	snapshot := make(map[uint64]int, len(q.byUser))
	for id, n := range q.byUser {
		snapshot[id] = n
	}
	return snapshot
}
