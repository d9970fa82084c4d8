// Package visibility manages the per-match moderation lifecycle: the
// owner-controlled private flag, the moderator-controlled forbidden flag and
// the like ledger. States per match are {private, public} x {allowed,
// forbidden}; forbidden always wins for public visibility.
package visibility

import (
	"context"
	"log/slog"

	apperr "github.com/slowtunes/slowtunes/internal/errors"
	"github.com/slowtunes/slowtunes/internal/ports"
	"github.com/slowtunes/slowtunes/internal/repository"
)

// StateMachine applies visibility transitions on top of the store.
type StateMachine struct {
	matches   *repository.MatchRepository
	likes     *repository.LikeRepository
	moderator ports.ModeratorChannel
	log       *slog.Logger
}

// New creates a StateMachine.
func New(
	matches *repository.MatchRepository,
	likes *repository.LikeRepository,
	moderator ports.ModeratorChannel,
	log *slog.Logger,
) *StateMachine {
	return &StateMachine{matches: matches, likes: likes, moderator: moderator, log: log}
}

// TogglePrivate flips the share flag and returns the new value. Only the
// owner may call it; anyone else gets ErrUnauthorized with no state change.
// Toggling a forbidden match is permitted, the owner may reorganize their
// library, but the match stays invisible publicly while forbidden.
func (s *StateMachine) TogglePrivate(ctx context.Context, matchID, requesterID uint64) (bool, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return false, err
	}
	if m.OwnerID != requesterID {
		return false, apperr.ErrUnauthorized
	}

	next := !m.IsPrivate
	if err := s.matches.SetPrivate(ctx, matchID, next); err != nil {
		return false, err
	}
	s.log.Info("visibility toggled", "match_id", matchID, "is_private", next)
	return next, nil
}

// SetPrivate sets the share flag to an explicit value, with the same owner
// check as TogglePrivate.
func (s *StateMachine) SetPrivate(ctx context.Context, matchID, requesterID uint64, private bool) error {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if m.OwnerID != requesterID {
		return apperr.ErrUnauthorized
	}
	return s.matches.SetPrivate(ctx, matchID, private)
}

// Report sends a moderation request for the match. It does not mutate the
// match: the verdict arrives later via ResolveReport. Reporting an already
// forbidden match yields ErrAlreadyForbidden so moderators are not spammed
// with duplicates.
func (s *StateMachine) Report(ctx context.Context, matchID, reporterID uint64) error {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if m.IsForbidden {
		return apperr.ErrAlreadyForbidden
	}

	s.log.Info("new report", "match_id", matchID, "reporter_id", reporterID)
	return s.moderator.AlertModerator(ctx, matchID, reporterID)
}

// ResolveReport records the moderator's verdict. Both directions are legal:
// accepted forbids the match, declined clears the flag even if it was set by
// an earlier report.
func (s *StateMachine) ResolveReport(ctx context.Context, matchID uint64, accepted bool) error {
	if err := s.matches.SetForbidden(ctx, matchID, accepted); err != nil {
		return err
	}
	s.log.Info("report resolved", "match_id", matchID, "forbidden", accepted)
	return nil
}

// ToggleLike flips the user's like on the match and returns the new state so
// the caller can update its affordance without a second read.
func (s *StateMachine) ToggleLike(ctx context.Context, matchID, userID uint64) (bool, error) {
	if _, err := s.matches.GetByID(ctx, matchID); err != nil {
		return false, err
	}
	return s.likes.Toggle(ctx, matchID, userID)
}
