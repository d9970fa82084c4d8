package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/slowtunes/slowtunes/internal/db"
)

// LikeRepository manages the endorsement edges between users and tunes.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// Toggle flips the like edge for (matchID, userID) and returns the new state.
// The edge is a real row, not a soft flag: toggling off deletes it, so the
// row count for a pair is always 0 or 1.
func (r *LikeRepository) Toggle(ctx context.Context, matchID, userID uint64) (bool, error) {
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("match_id = ? AND user_id = ?", matchID, userID).
			Delete(&db.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			liked = false
			return nil
		}

		err := tx.Create(&db.Like{MatchID: matchID, UserID: userID}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race against an identical toggle-on; same end state
			liked = true
			return nil
		}
		if err != nil {
			return err
		}
		liked = true
		return nil
	})
	return liked, err
}

// IsLiked reports whether the user currently likes the match.
func (r *LikeRepository) IsLiked(ctx context.Context, matchID, userID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("match_id = ? AND user_id = ?", matchID, userID).
		Count(&count).Error
	return count > 0, err
}

// CountForMatch returns how many users like the given match.
func (r *LikeRepository) CountForMatch(ctx context.Context, matchID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("match_id = ?", matchID).
		Count(&count).Error
	return count, err
}
