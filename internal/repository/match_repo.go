package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/slowtunes/slowtunes/internal/db"
	apperr "github.com/slowtunes/slowtunes/internal/errors"
)

// MatchRepository provides data access for processed tunes. It doubles as the
// dedup cache: Lookup/Insert are keyed by content fingerprint and the unique
// index arbitrates concurrent inserts.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// Lookup returns the match for a content fingerprint, or ErrNotFound.
// A hit means the submitted content was already processed and the cached
// artifact can be served without transcoding anything.
func (r *MatchRepository) Lookup(ctx context.Context, fingerprint string) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Insert creates the match row for a freshly processed tune. New rows are
// always private.
//
// Returns ErrDuplicateFingerprint when another writer created the row first;
// the caller must treat that as "someone else just finished the same job"
// and re-fetch rather than fail. With a single queue worker the window is
// narrow, but the store-level unique index keeps the contract honest for
// multi-process deployments.
func (r *MatchRepository) Insert(ctx context.Context, fingerprint, artifactRef string, ownerID uint64) (*db.Match, error) {
	m := db.Match{
		Fingerprint: fingerprint,
		ArtifactRef: artifactRef,
		OwnerID:     ownerID,
		IsPrivate:   true,
	}
	err := r.db.WithContext(ctx).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.ErrDuplicateFingerprint
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID returns a match by primary key, or ErrNotFound.
func (r *MatchRepository) GetByID(ctx context.Context, id uint64) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// EligibleIDs returns the ids of all matches currently visible to public
// browsing: shared by their owner and not forbidden by moderation.
func (r *MatchRepository) EligibleIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("is_private = ? AND is_forbidden = ?", false, false).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// EligibleCount returns how many matches are visible to public browsing.
func (r *MatchRepository) EligibleCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("is_private = ? AND is_forbidden = ?", false, false).
		Count(&count).Error
	return count, err
}

// SetPrivate updates the owner-controlled visibility flag. Setting the flag
// to its current value is a legal no-op.
func (r *MatchRepository) SetPrivate(ctx context.Context, id uint64, private bool) error {
	return r.setFlag(ctx, id, "is_private", private)
}

// SetForbidden updates the moderation flag. Both directions are legal: a
// forbidden match can be un-forbidden by a later verdict, and declining a
// report on a never-forbidden match changes nothing.
func (r *MatchRepository) SetForbidden(ctx context.Context, id uint64, forbidden bool) error {
	return r.setFlag(ctx, id, "is_forbidden", forbidden)
}

// setFlag runs the UPDATE and only then resolves what zero affected rows
// meant. MySQL reports zero for a value-preserving update as well as for a
// missing row, so existence has to be checked explicitly rather than
// inferred from the rows-affected count.
func (r *MatchRepository) setFlag(ctx context.Context, id uint64, column string, value bool) error {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the total number of processed tunes.
func (r *MatchRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Match{}).Count(&count).Error
	return count, err
}

// List returns matches ordered by id for the admin listing.
func (r *MatchRepository) List(ctx context.Context, limit, offset int) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&matches).Error
	return matches, err
}
