// workers/streak_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"game-arena-system/models"

	"gorm.io/gorm"
)

// PollStreaks resets the login streak of users who skipped a day. The
// streak is only bumped at login time, so a lapsed streak would otherwise
// keep its stale count until the next login; this sweep zeroes it so
// leaderboard and profile views stay honest.
func PollStreaks(ctx context.Context, db *gorm.DB, pollInterval time.Duration) {
	log.Println("🔁 Starting login streak sweep...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Login streak sweep stopped.")
			return
		case <-ticker.C:
			// Anyone whose last login predates yesterday has broken the chain.
			cutoff := time.Now().Truncate(24 * time.Hour).AddDate(0, 0, -1)

			res := db.Model(&models.User{}).
				Where("login_streak > 0 AND last_login_at < ?", cutoff).
				Update("login_streak", 0)
			if res.Error != nil {
				log.Printf("❌ Streak sweep failed: %v", res.Error)
				continue
			}
			if res.RowsAffected > 0 {
				log.Printf("🧹 Reset login streak for %d lapsed user(s)", res.RowsAffected)
			}
		}
	}
}
