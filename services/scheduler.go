package services

import (
	"log"
	"time"

	"habit-gamification-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartExpiryScheduler closes out challenges whose end date has passed.
// Progress updates already ignore ended challenges; flipping the status keeps
// listings and join checks cheap.
func (s *ChallengeService) StartExpiryScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: end expired challenges
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			now := s.Clock.Now().UTC()
			res := s.DB.Model(&models.Challenge{}).
				Where("status = ? AND end_date <= ?", models.ChallengeActive, now).
				Update("status", models.ChallengeEnded)
			if res.Error != nil {
				log.Printf("[Scheduler] DB error: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("✅ Ended %d expired challenge(s)", res.RowsAffected)
			}
		}),
	)
}
