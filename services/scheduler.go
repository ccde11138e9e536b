// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRewardScheduler runs the subscription reward batch on an interval.
// The batch itself is idempotent, so overlapping or repeated runs are
// harmless.
func (s *SubscriptionService) StartRewardScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every hour: pay out whatever became due today
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			paid, err := s.ProcessRewardsForDate(time.Now())
			if err != nil {
				log.Printf("[Scheduler] reward batch error: %v", err)
				return
			}
			if paid > 0 {
				log.Printf("✅ Scheduler paid %d subscription rewards", paid)
			}
		}),
	)
}
