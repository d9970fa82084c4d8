// Package admission caps concurrent in-flight jobs per user so one user
// cannot flood the shared worker. The cap is backed by a durable counter so
// it holds across process restarts and multiple request handlers.
package admission

import (
	"context"
	"log/slog"
	"time"

	"github.com/slowtunes/slowtunes/internal/repository"
)

// InFlightSnapshotter exposes the queue's live per-user pending/running
// counts. Satisfied by *queue.Queue.
type InFlightSnapshotter interface {
	InFlightByUser() map[uint64]int
}

// Controller enforces the per-user concurrency cap.
type Controller struct {
	counters *repository.CounterRepository
	limit    int
	log      *slog.Logger
}

// New creates a Controller with the given cap.
func New(counters *repository.CounterRepository, limit int, log *slog.Logger) *Controller {
	return &Controller{counters: counters, limit: limit, log: log}
}

// Limit returns the configured per-user cap.
func (c *Controller) Limit() int {
	return c.limit
}

// TryAdmit atomically claims a slot for the user. Returns false when the
// user is already at the cap; the counter is untouched in that case.
// Every true result must be paired with exactly one Release from the job's
// guaranteed-release path.
func (c *Controller) TryAdmit(ctx context.Context, userID uint64) (bool, error) {
	ok, err := c.counters.TryAcquire(ctx, userID, c.limit)
	if err != nil {
		return false, err
	}
	if !ok {
		c.log.Debug("admission denied", "user_id", userID, "limit", c.limit)
	}
	return ok, nil
}

// Release frees a slot, floored at zero against double-release. Errors are
// logged, not returned: release runs on defer paths that must not fail.
func (c *Controller) Release(ctx context.Context, userID uint64) {
	if err := c.counters.Release(ctx, userID); err != nil {
		c.log.Error("failed to release admission slot", "user_id", userID, "err", err)
	}
}

// StartReconciler runs a periodic sweep that re-derives the true in-flight
// count from the queue's own pending/running set and clamps each durable
// counter down to it. A crashed worker cannot call Release, so this is how
// leaked slots eventually free up. Counters are only ever lowered: an
// enqueue racing the sweep can make the snapshot stale in the under-counting
// direction only, which errs on admitting.
func (c *Controller) StartReconciler(ctx context.Context, q InFlightSnapshotter, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.reconcile(ctx, q)
			}
		}
	}()
}

func (c *Controller) reconcile(ctx context.Context, q InFlightSnapshotter) {
	active, err := c.counters.Active(ctx)
	if err != nil {
		c.log.Error("reconcile sweep failed to list counters", "err", err)
		return
	}
	if len(active) == 0 {
		return
	}

	live := q.InFlightByUser()
	for _, counter := range active {
		inFlight := live[counter.UserID]
		if counter.Count <= inFlight {
			continue
		}
		c.log.Warn("clamping leaked admission counter",
			"user_id", counter.UserID,
			"durable", counter.Count,
			"live", inFlight,
		)
		if err := c.counters.Clamp(ctx, counter.UserID, inFlight); err != nil {
			c.log.Error("failed to clamp counter", "user_id", counter.UserID, "err", err)
		}
	}
}
