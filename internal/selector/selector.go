// Package selector serves "give me a public tune I haven't just seen"
// semantics. Instead of an ORDER BY random() scan per request, each user gets
// a shuffled list of all eligible ids in Redis and consumes it from the
// front; the shuffle cost is amortized over a full pass and the TTL bounds
// memory held by abandoned cycles.
package selector

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/slowtunes/slowtunes/internal/cache"
	"github.com/slowtunes/slowtunes/internal/db"
	apperr "github.com/slowtunes/slowtunes/internal/errors"
	"github.com/slowtunes/slowtunes/internal/repository"
)

// Selector produces non-repeating random picks of public, non-forbidden
// matches, one cycle per user.
type Selector struct {
	cache   *cache.RedisCache
	matches *repository.MatchRepository
	ttl     time.Duration
	log     *slog.Logger
}

// New creates a Selector. ttl is how long an unfinished cycle survives.
func New(c *cache.RedisCache, matches *repository.MatchRepository, ttl time.Duration, log *slog.Logger) *Selector {
	return &Selector{cache: c, matches: matches, ttl: ttl, log: log}
}

// Next pops the user's next match. When the cycle is exhausted (or expired)
// it is rebuilt from a fresh shuffled query of currently eligible ids.
// Returns ErrNoPublicMatches when the global eligible set is empty.
//
// Ids popped from a stale cycle may point at matches that were hidden or
// forbidden after the cycle was built; those are skipped, never returned.
func (s *Selector) Next(ctx context.Context, userID uint64) (*db.Match, error) {
	rebuilt := false
	for {
		id, ok, err := s.cache.PopCycleID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			if rebuilt {
				// fresh cycle already drained within this call
				return nil, apperr.ErrNoPublicMatches
			}
			if err := s.rebuild(ctx, userID); err != nil {
				return nil, err
			}
			rebuilt = true
			continue
		}

		m, err := s.matches.GetByID(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !m.Eligible() {
			// hidden or forbidden since the cycle was built
			continue
		}
		return m, nil
	}
}

// NextExcluding behaves like Next but skips excludeID (the match already on
// the caller's screen). When more than one eligible match exists globally it
// retries once; when excludeID is the only eligible match it returns
// ErrNothingNew instead of looping.
func (s *Selector) NextExcluding(ctx context.Context, userID, excludeID uint64) (*db.Match, error) {
	m, err := s.Next(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m.ID != excludeID {
		return m, nil
	}

	count, err := s.matches.EligibleCount(ctx)
	if err != nil {
		return nil, err
	}
	if count <= 1 {
		return nil, apperr.ErrNothingNew
	}

	m, err = s.Next(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m.ID == excludeID {
		return nil, apperr.ErrNothingNew
	}
	return m, nil
}

// Invalidate discards the user's current cycle so the next pick rebuilds
// from the live eligible set. Called when the user changes a share state:
// their stale cycle would otherwise keep excluding (or including) the tune
// they just flipped until the cycle ran out.
func (s *Selector) Invalidate(ctx context.Context, userID uint64) error {
	return s.cache.DropCycle(ctx, userID)
}

// CycleRemaining reports how many picks are left in the user's cycle.
func (s *Selector) CycleRemaining(ctx context.Context, userID uint64) (int64, error) {
	return s.cache.CycleLen(ctx, userID)
}

// rebuild fills the user's cycle with a fresh uniform permutation of all
// currently eligible ids.
func (s *Selector) rebuild(ctx context.Context, userID uint64) error {
	ids, err := s.matches.EligibleIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return apperr.ErrNoPublicMatches
	}

	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	s.log.Debug("rebuilt browsing cycle", "user_id", userID, "size", len(ids))
	return s.cache.FillCycle(ctx, userID, ids, s.ttl)
}
