package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/slowtunes/slowtunes/internal/db"
)

// CounterRepository backs admission control with durable per-user in-flight
// counters. All mutations are single conditional UPDATEs so the cap holds
// under concurrent calls and across multiple process instances; there is no
// read-then-write anywhere.
type CounterRepository struct {
	db *gorm.DB
}

// NewCounterRepository creates a new repository bound to the given DB connection.
func NewCounterRepository(database *gorm.DB) *CounterRepository {
	return &CounterRepository{db: database}
}

// TryAcquire atomically increments the user's counter if it is below limit.
// Returns false, leaving the counter untouched, when the user is at the cap.
func (r *CounterRepository) TryAcquire(ctx context.Context, userID uint64, limit int) (bool, error) {
	if err := r.ensureRow(ctx, userID); err != nil {
		return false, err
	}

	res := r.db.WithContext(ctx).
		Model(&db.QueueCounter{}).
		Where("user_id = ? AND count < ?", userID, limit).
		UpdateColumn("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Release atomically decrements the user's counter, floored at zero.
// The floor is a guard against double-release, not a normal path.
func (r *CounterRepository) Release(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.QueueCounter{}).
		Where("user_id = ? AND count > 0", userID).
		UpdateColumn("count", gorm.Expr("count - 1")).Error
}

// Get returns the current in-flight count for a user.
func (r *CounterRepository) Get(ctx context.Context, userID uint64) (int, error) {
	var c db.QueueCounter
	err := r.db.WithContext(ctx).First(&c, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Count, nil
}

// Active returns all counters with a non-zero count. Used by the
// reconciliation sweep to find candidates for clamping.
func (r *CounterRepository) Active(ctx context.Context) ([]db.QueueCounter, error) {
	var counters []db.QueueCounter
	err := r.db.WithContext(ctx).
		Where("count > 0").
		Find(&counters).Error
	return counters, err
}

// Clamp lowers the user's counter to max if it currently exceeds it. It never
// raises the counter, so racing with a concurrent enqueue can only
// under-count, which errs on the side of admitting.
func (r *CounterRepository) Clamp(ctx context.Context, userID uint64, max int) error {
	return r.db.WithContext(ctx).
		Model(&db.QueueCounter{}).
		Where("user_id = ? AND count > ?", userID, max).
		UpdateColumn("count", max).Error
}

func (r *CounterRepository) ensureRow(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.QueueCounter{UserID: userID}).Error
}
