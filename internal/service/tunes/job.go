package tunes

import (
	"context"
	"errors"
	"fmt"
	"os"

	apperr "github.com/slowtunes/slowtunes/internal/errors"
	"github.com/slowtunes/slowtunes/internal/ports"
)

// transcodeJob builds the body of one queued submission. The admission slot
// acquired in Submit is released here no matter how the job ends, on a
// context detached from the job's so cancellation cannot leak the slot.
func (s *Service) transcodeJob(userID uint64, fingerprint, sourceRef string, meta ports.ArtifactMeta) func(context.Context) error {
	return func(ctx context.Context) error {
		defer s.admission.Release(context.WithoutCancel(ctx), userID)

		localRef, err := s.gateway.DownloadInbound(ctx, sourceRef)
		if err != nil {
			s.notify(ctx, userID, "Could not fetch your audio, please send it again.")
			return fmt.Errorf("%w: %v", apperr.ErrDownloadFailure, err)
		}
		defer s.removeLocal(localRef)

		outputRef, err := s.transcoder.Process(ctx, localRef, s.cfg.Audio.SpeedRatio)
		if err != nil {
			s.notify(ctx, userID, "Something went wrong while slowing your tune, please try another file.")
			return fmt.Errorf("%w: %v", apperr.ErrTranscodeFailure, err)
		}
		defer s.removeLocal(outputRef)

		artifactRef, err := s.gateway.UploadOutbound(ctx, outputRef)
		if err != nil {
			s.notify(ctx, userID, "Something went wrong, please try again later.")
			return fmt.Errorf("upload artifact: %w", err)
		}

		m, err := s.matches.Insert(ctx, fingerprint, artifactRef, userID)
		if errors.Is(err, apperr.ErrDuplicateFingerprint) {
			// lost the race against a concurrent submission of the same
			// content: the first row wins, deliver its artifact
			m, err = s.matches.Lookup(ctx, fingerprint)
		}
		if err != nil {
			s.notify(ctx, userID, "Something went wrong, please try again later.")
			return fmt.Errorf("persist match: %w", err)
		}

		if err := s.gateway.DeliverArtifact(ctx, userID, m.ArtifactRef, meta); err != nil {
			return fmt.Errorf("deliver artifact: %w", err)
		}

		s.appCtx.Logger.Info("submission processed",
			"user_id", userID,
			"match_id", m.ID,
		)
		return nil
	}
}

func (s *Service) notify(ctx context.Context, userID uint64, message string) {
	if err := s.gateway.Notify(ctx, userID, message); err != nil {
		s.appCtx.Logger.Error("notify user", "user_id", userID, "error", err)
	}
}

// removeLocal cleans up a scratch file. Local refs are filesystem paths per
// the MessagingGateway contract; a ref that is not a real file is ignored.
func (s *Service) removeLocal(ref string) {
	if ref == "" {
		return
	}
	if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
		s.appCtx.Logger.Warn("remove scratch file", "path", ref, "error", err)
	}
}
