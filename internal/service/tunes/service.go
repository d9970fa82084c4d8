// Package tunes implements the core API exposed to the chat layer: submit
// audio for slowing, browse shared tunes, manage visibility and likes, and
// feed the moderation workflow. All mutable cross-cutting state lives in the
// store's atomic primitives, so every method is safe to call from many
// concurrent request handlers; only the queue worker itself is process-local.
package tunes

import (
	"context"
	"errors"

	"github.com/slowtunes/slowtunes/internal/admission"
	"github.com/slowtunes/slowtunes/internal/app"
	"github.com/slowtunes/slowtunes/internal/config"
	"github.com/slowtunes/slowtunes/internal/db"
	apperr "github.com/slowtunes/slowtunes/internal/errors"
	"github.com/slowtunes/slowtunes/internal/ports"
	"github.com/slowtunes/slowtunes/internal/queue"
	"github.com/slowtunes/slowtunes/internal/ratelimit"
	"github.com/slowtunes/slowtunes/internal/repository"
	"github.com/slowtunes/slowtunes/internal/selector"
	"github.com/slowtunes/slowtunes/internal/visibility"
)

// ItemsPerPage is the page size for the admin tune listing.
const ItemsPerPage = 10

// Service wires the core mechanisms together behind one API.
type Service struct {
	appCtx *app.AppContext
	cfg    *config.Config

	matches *repository.MatchRepository
	likes   *repository.LikeRepository
	users   *repository.UserRepository

	queue      *queue.Queue
	admission  *admission.Controller
	selector   *selector.Selector
	limiter    *ratelimit.Limiter
	visibility *visibility.StateMachine

	transcoder ports.Transcoder
	gateway    ports.MessagingGateway
}

// NewService builds the service and its internal components from the shared
// AppContext and the injected external collaborators. The queue's lifecycle
// is owned by the composition root, not by the service.
func NewService(
	appCtx *app.AppContext,
	cfg *config.Config,
	q *queue.Queue,
	transcoder ports.Transcoder,
	gateway ports.MessagingGateway,
	moderator ports.ModeratorChannel,
) *Service {
	matches := repository.NewMatchRepository(appCtx.DB)
	likes := repository.NewLikeRepository(appCtx.DB)
	counters := repository.NewCounterRepository(appCtx.DB)

	return &Service{
		appCtx:     appCtx,
		cfg:        cfg,
		matches:    matches,
		likes:      likes,
		users:      repository.NewUserRepository(appCtx.DB),
		queue:      q,
		admission:  admission.New(counters, cfg.Queue.TaskLimit, appCtx.Logger),
		selector:   selector.New(appCtx.RedisCache, matches, cfg.Selector.CycleTTL, appCtx.Logger),
		limiter:    ratelimit.New(cfg.Throttle.Rate),
		visibility: visibility.New(matches, likes, moderator, appCtx.Logger),
		transcoder: transcoder,
		gateway:    gateway,
	}
}

// Admission exposes the controller so the composition root can start the
// reconciliation sweep against the queue.
func (s *Service) Admission() *admission.Controller {
	return s.admission
}

// SubmitResult is the outcome of a submission. Exactly one of the branches
// applies: Cached is non-nil on a dedup hit, otherwise Position reports the
// queue slot the job landed in.
type SubmitResult struct {
	Cached   *db.Match
	Position int
}

// Submit runs the admission pipeline for one piece of submitted audio:
// cooldown gate, dedup lookup, concurrency cap, then enqueue.
//
// On a dedup hit the cached artifact is delivered immediately and no job is
// created. Errors: ErrRateLimited (with remaining wait), ErrAdmissionDenied
// (user at cap, nothing enqueued).
func (s *Service) Submit(ctx context.Context, userID uint64, fingerprint, sourceRef string, meta ports.ArtifactMeta) (*SubmitResult, error) {
	if ok, wait := s.limiter.Allow(userID, ratelimit.OpSubmit); !ok {
		return nil, apperr.RateLimited(wait)
	}

	// content already processed: serve the stored artifact, skip the queue
	m, err := s.matches.Lookup(ctx, fingerprint)
	if err == nil {
		s.appCtx.Logger.Debug("dedup hit", "fingerprint", fingerprint, "match_id", m.ID)
		if err := s.gateway.DeliverArtifact(ctx, userID, m.ArtifactRef, meta); err != nil {
			return nil, err
		}
		return &SubmitResult{Cached: m}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	ok, err := s.admission.TryAdmit(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.AdmissionDenied(s.admission.Limit())
	}

	position := s.queue.Enqueue(queue.Job{
		UserID: userID,
		Run:    s.transcodeJob(userID, fingerprint, sourceRef, meta),
	})

	s.appCtx.Logger.Info("submission queued",
		"user_id", userID,
		"fingerprint", fingerprint,
		"position", position,
	)
	return &SubmitResult{Position: position}, nil
}

// BrowsePublic returns a random shared tune the user has not seen in their
// current cycle. excludeID, when non-zero, names the match already on the
// caller's screen. Errors: ErrRateLimited, ErrNoPublicMatches, ErrNothingNew.
func (s *Service) BrowsePublic(ctx context.Context, userID, excludeID uint64) (*db.Match, error) {
	if ok, wait := s.limiter.Allow(userID, ratelimit.OpBrowse); !ok {
		return nil, apperr.RateLimited(wait)
	}
	if excludeID != 0 {
		return s.selector.NextExcluding(ctx, userID, excludeID)
	}
	return s.selector.Next(ctx, userID)
}

// SetVisibility sets the share flag; only the owner may call it.
func (s *Service) SetVisibility(ctx context.Context, matchID, requesterID uint64, private bool) error {
	if ok, wait := s.limiter.Allow(requesterID, ratelimit.OpShare); !ok {
		return apperr.RateLimited(wait)
	}
	if err := s.visibility.SetPrivate(ctx, matchID, requesterID, private); err != nil {
		return err
	}
	// the requester's browsing cycle predates the flip and no longer
	// reflects the eligible set; drop it so their next pick rebuilds
	if err := s.selector.Invalidate(ctx, requesterID); err != nil {
		s.appCtx.Logger.Warn("invalidate browsing cycle", "user_id", requesterID, "err", err)
	}
	return nil
}

// Report files a moderation request for a shared tune.
func (s *Service) Report(ctx context.Context, matchID, reporterID uint64) error {
	if ok, wait := s.limiter.Allow(reporterID, ratelimit.OpReport); !ok {
		return apperr.RateLimited(wait)
	}
	return s.visibility.Report(ctx, matchID, reporterID)
}

// ResolveReport records the moderator's verdict on a reported tune.
func (s *Service) ResolveReport(ctx context.Context, matchID uint64, accepted bool) error {
	return s.visibility.ResolveReport(ctx, matchID, accepted)
}

// Like toggles the user's like on a match and returns the new state.
func (s *Service) Like(ctx context.Context, matchID, userID uint64) (bool, error) {
	if ok, wait := s.limiter.Allow(userID, ratelimit.OpLike); !ok {
		return false, apperr.RateLimited(wait)
	}
	return s.visibility.ToggleLike(ctx, matchID, userID)
}

// RegisterUser records the user on first interaction and refreshes the
// display name on repeat contact.
func (s *Service) RegisterUser(ctx context.Context, userID uint64, displayName string) error {
	return s.users.Upsert(ctx, userID, displayName)
}

// Stats summarizes the service for the about page.
type Stats struct {
	Users         int64
	Matches       int64
	PublicMatches int64
}

// Stats returns user and tune counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := s.matches.Count(ctx)
	if err != nil {
		return nil, err
	}
	public, err := s.matches.EligibleCount(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Users: users, Matches: matches, PublicMatches: public}, nil
}

// GetMatch returns one match by id for the admin tune view.
func (s *Service) GetMatch(ctx context.Context, id uint64) (*db.Match, error) {
	return s.matches.GetByID(ctx, id)
}

// ListMatches returns one page of the admin tune listing, 1-based.
func (s *Service) ListMatches(ctx context.Context, page int) ([]db.Match, error) {
	if page < 1 {
		page = 1
	}
	return s.matches.List(ctx, ItemsPerPage, ItemsPerPage*(page-1))
}
