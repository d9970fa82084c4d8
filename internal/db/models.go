package db

import (
	"time"
)

// Match represents one processed artifact.
//
// Invariants:
//   - Fingerprint uniquely identifies the original submitted content; the
//     unique index is what makes dedup safe under concurrent inserts
//     (the store, not process memory, arbitrates the race).
//   - ArtifactRef and OwnerID are set once at creation and never change.
//   - IsPrivate is mutable only by the owner; IsForbidden only via moderation.
//     A forbidden match is excluded from public browsing regardless of
//     IsPrivate.
//
// Rows are created exactly once per distinct fingerprint by the queue worker
// and never deleted.
type Match struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Fingerprint string    `gorm:"uniqueIndex;size:128;not null"`
	ArtifactRef string    `gorm:"size:255;not null"`
	OwnerID     uint64    `gorm:"not null;index"`
	IsPrivate   bool      `gorm:"not null;default:true"`
	IsForbidden bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Eligible reports whether the match may appear in public browsing.
func (m *Match) Eligible() bool {
	return !m.IsPrivate && !m.IsForbidden
}

// Like is an endorsement edge. The composite PK guarantees a user can like
// a given match at most once; toggling off deletes the row.
type Like struct {
	MatchID   uint64    `gorm:"primaryKey"`
	UserID    uint64    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// User is the minimal identity record, inserted on first interaction.
// DisplayName is refreshed on repeat contact, nothing else ever updates.
type User struct {
	ID          uint64    `gorm:"primaryKey"`
	DisplayName string    `gorm:"size:64"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// QueueCounter is the durable per-user in-flight job count backing admission
// control. It survives process restarts so the cap holds even when the
// in-memory queue is rebuilt. Invariant: 0 <= Count <= TaskLimit, enforced by
// conditional updates in the repository, never by read-then-write.
type QueueCounter struct {
	UserID    uint64    `gorm:"primaryKey"`
	Count     int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
