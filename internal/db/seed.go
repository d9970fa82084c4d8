package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"gorm.io/gorm"
)

// SeedTestData resets the database and populates it with demo users, tunes
// and likes for local development.
//
// Behavior:
//  1. Clears existing data in all four tables.
//  2. Creates 8 users.
//  3. Creates 12 matches: roughly half shared publicly, one of the public
//     ones forbidden by moderation, the rest private.
//  4. Sprinkles likes over the public matches.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"likes", "matches", "queue_counters", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// Reset auto-increment sequences
	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE matches AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'matches'")
	}

	log.Println("Cleared existing data")

	// --- Users ---
	users := make([]User, 0, 8)
	for i := 1; i <= 8; i++ {
		users = append(users, User{
			ID:          uint64(1000 + i),
			DisplayName: fmt.Sprintf("listener%d", i),
		})
	}
	if err := db.Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	// --- Matches ---
	matches := make([]Match, 0, 12)
	for i := 1; i <= 12; i++ {
		m := Match{
			Fingerprint: fmt.Sprintf("seed-fp-%04d", i),
			ArtifactRef: fmt.Sprintf("seed-artifact-%04d.mp3", i),
			OwnerID:     users[i%len(users)].ID,
			IsPrivate:   i%2 == 0,
		}
		matches = append(matches, m)
	}
	// one shared tune got reported and forbidden
	matches[2].IsForbidden = true

	if err := db.Create(&matches).Error; err != nil {
		return fmt.Errorf("failed to seed matches: %w", err)
	}

	// --- Likes on public tunes ---
	var likes []Like
	for _, m := range matches {
		if m.IsPrivate || m.IsForbidden {
			continue
		}
		for _, u := range users {
			if u.ID == m.OwnerID || r.Intn(3) != 0 {
				continue
			}
			likes = append(likes, Like{MatchID: m.ID, UserID: u.ID})
		}
	}
	if len(likes) > 0 {
		if err := db.Create(&likes).Error; err != nil {
			return fmt.Errorf("failed to seed likes: %w", err)
		}
	}

	log.Printf("Seeded %d users, %d matches, %d likes", len(users), len(matches), len(likes))
	return nil
}
