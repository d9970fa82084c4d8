// Package ratelimit shapes inbound request rate before admission control is
// even considered: a per-(user, operation) cooldown gate, independent of the
// job queue.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Op names a rate-limited operation. Keys are decoupled from any particular
// handler's identity so the chat layer can rename handlers freely.
type Op int

const (
	OpSubmit Op = iota
	OpBrowse
	OpLike
	OpShare
	OpReport
)

func (o Op) String() string {
	switch o {
	case OpSubmit:
		return "submit"
	case OpBrowse:
		return "browse"
	case OpLike:
		return "like"
	case OpShare:
		return "share"
	case OpReport:
		return "report"
	default:
		return "unknown"
	}
}

type key struct {
	userID uint64
	op     Op
}

type entry struct {
	limiter *rate.Limiter
	expires time.Time
}

// Limiter is a cooldown gate: one call per (user, op) per cooldown window.
// Each pair has its own token bucket of burst 1, so submitting audio and
// requesting a random tune have separate budgets.
type Limiter struct {
	mu       sync.Mutex
	entries  map[key]*entry
	cooldown time.Duration
}

// New creates a Limiter with the given cooldown window.
func New(cooldown time.Duration) *Limiter {
	return &Limiter{
		entries:  make(map[key]*entry),
		cooldown: cooldown,
	}
}

// Allow reports whether the call may proceed. When denied it returns the
// remaining wait so the caller can surface a "slow down" message; the
// denied call does not reset the window.
func (l *Limiter) Allow(userID uint64, op Op) (bool, time.Duration) {
	lim := l.get(key{userID: userID, op: op})

	res := lim.Reserve()
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

func (l *Limiter) get(k key) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupExpiredLocked()

	if e, ok := l.entries[k]; ok {
		e.expires = time.Now().Add(5 * l.cooldown)
		return e.limiter
	}

	e := &entry{
		limiter: rate.NewLimiter(rate.Every(l.cooldown), 1),
		expires: time.Now().Add(5 * l.cooldown),
	}
	l.entries[k] = e
	return e.limiter
}

func (l *Limiter) cleanupExpiredLocked() {
	now := time.Now()
	for k, e := range l.entries {
		if now.After(e.expires) {
			delete(l.entries, k)
		}
	}
}
