// Package errors defines the domain error taxonomy shared across the core.
// Callers are expected to match with errors.Is; the chat layer turns these
// into user-facing replies at its boundary.
package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAdmissionDenied means the user already has TaskLimit jobs in flight.
	ErrAdmissionDenied = errors.New("admission denied")

	// ErrDuplicateFingerprint means another writer created the match row first.
	// Recoverable: re-fetch the winning row instead of failing the job.
	ErrDuplicateFingerprint = errors.New("duplicate fingerprint")

	// ErrTranscodeFailure wraps failures of the external transcoder.
	ErrTranscodeFailure = errors.New("transcode failure")

	// ErrDownloadFailure wraps failures fetching the submitted content.
	ErrDownloadFailure = errors.New("download failure")

	// ErrUnauthorized means a visibility mutation was attempted by a non-owner.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyForbidden guards against duplicate moderation requests.
	ErrAlreadyForbidden = errors.New("already forbidden")

	ErrNotFound = errors.New("not found")

	// ErrRateLimited means the per-handler cooldown has not elapsed.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoPublicMatches means the global eligible set is empty.
	ErrNoPublicMatches = errors.New("no public matches")

	// ErrNothingNew means the only eligible match is the one the caller
	// already has on screen.
	ErrNothingNew = errors.New("nothing new to show")
)

// RateLimited builds an ErrRateLimited carrying the remaining wait.
func RateLimited(wait time.Duration) error {
	return fmt.Errorf("%w: retry in %s", ErrRateLimited, wait.Round(time.Millisecond))
}

// AdmissionDenied builds an ErrAdmissionDenied carrying the cap that was hit.
func AdmissionDenied(limit int) error {
	return fmt.Errorf("%w: concurrency cap of %d reached", ErrAdmissionDenied, limit)
}
