package services

import (
	"errors"
	"log"
	"time"

	"habit-gamification-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// GamificationService is the entry point the API layer calls on every habit
// completion or undo. It sequences streak recomputation, XP grants, badge
// evaluation and challenge updates inside one database transaction, so an
// event either applies in full or not at all.
type GamificationService struct {
	DB         *gorm.DB
	Ledger     *LedgerService
	Badges     *BadgeService
	Challenges *ChallengeService
	Clock      clockwork.Clock
}

func NewGamificationService(db *gorm.DB, ledger *LedgerService, badges *BadgeService, challenges *ChallengeService, clock clockwork.Clock) *GamificationService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GamificationService{
		DB:         db,
		Ledger:     ledger,
		Badges:     badges,
		Challenges: challenges,
		Clock:      clock,
	}
}

// StreakInfo is the post-event streak state of the habit.
type StreakInfo struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// LogResult summarizes everything one completion event granted.
type LogResult struct {
	HabitID          string            `json:"habit_id"`
	Date             string            `json:"date"`
	Streak           StreakInfo        `json:"streak"`
	XPGranted        int64             `json:"xp_granted"`
	PerfectDay       bool              `json:"perfect_day"`
	NewBadges        []models.Badge    `json:"new_badges"`
	ChallengeUpdates []ChallengeUpdate `json:"challenge_updates"`
}

// UndoResult summarizes the reversal of one completion event.
type UndoResult struct {
	HabitID    string     `json:"habit_id"`
	Date       string     `json:"date"`
	Streak     StreakInfo `json:"streak"`
	XPReversed int64      `json:"xp_reversed"`
}

// correlationKey groups every grant produced by one completion event so undo
// can reverse exactly that set.
func correlationKey(habitID, date string) string {
	return habitID + ":" + date
}

// LogHabit applies a completion event: creates the log, recomputes the
// streak, grants base XP plus any streak-milestone and perfect-day bonuses,
// evaluates badges, and updates joined challenges. Rejects with AlreadyLogged
// if a completed log already exists for (habit, date).
func (s *GamificationService) LogHabit(externalUserID, habitID, date string) (*LogResult, error) {
	if _, err := time.ParseInLocation(models.DateLayout, date, time.UTC); err != nil {
		return nil, NewDomainError(KindConsistency, "invalid date %q, want YYYY-MM-DD", date)
	}

	var result *LogResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		habit, err := s.loadOwnedHabit(tx, externalUserID, habitID)
		if err != nil {
			return err
		}

		var existing int64
		err = tx.Model(&models.HabitLog{}).
			Where("habit_id = ? AND log_date = ? AND completed = ?", habitID, date, true).
			Count(&existing).Error
		if err != nil {
			return wrapStore("check existing log", err)
		}
		if existing > 0 {
			return NewDomainError(KindAlreadyLogged, "habit %q already completed on %s", habit.Name, date)
		}

		var priorLogs []models.HabitLog
		if err := tx.Where("habit_id = ?", habitID).Find(&priorLogs).Error; err != nil {
			return wrapStore("load habit logs", err)
		}
		prev, _ := ComputeStreaks(habit, priorLogs, s.Clock.Now().UTC())

		logRow := models.HabitLog{
			ID:             uuid.NewString(),
			HabitID:        habitID,
			ExternalUserID: externalUserID,
			LogDate:        date,
			Completed:      true,
		}
		if err := tx.Create(&logRow).Error; err != nil {
			return wrapStore("create habit log", err)
		}

		current, longest, err := s.recomputeStreak(tx, habit)
		if err != nil {
			return err
		}

		key := correlationKey(habitID, date)
		var granted int64

		if _, err := s.Ledger.Grant(tx, externalUserID, BaseCompletionXP, models.SourceHabitComplete, habitID, key); err != nil {
			return err
		}
		granted += BaseCompletionXP

		// a backdated gap-fill can jump the streak past a milestone, so
		// grant every milestone between the pre-event and post-event value
		for _, m := range MilestonesCrossed(prev, current) {
			bonus := StreakMilestones[m]
			if _, err := s.Ledger.Grant(tx, externalUserID, bonus, models.SourceStreakBonus, habitID, key); err != nil {
				return err
			}
			granted += bonus
		}

		perfect, err := s.checkPerfectDay(tx, externalUserID, date)
		if err != nil {
			return err
		}
		if perfect {
			if _, err := s.Ledger.Grant(tx, externalUserID, PerfectDayXP, models.SourcePerfectDay, date, key); err != nil {
				return err
			}
			granted += PerfectDayXP
		}

		totalCompletions, err := s.bumpCounters(tx, externalUserID, 1, perfect)
		if err != nil {
			return err
		}

		totalXP, err := s.Ledger.sumAmounts(tx, externalUserID)
		if err != nil {
			return err
		}

		var newBadges []models.Badge
		for _, eval := range []struct {
			metric models.BadgeMetric
			value  int64
		}{
			{models.MetricCurrentStreak, int64(current)},
			{models.MetricTotalCompletions, totalCompletions},
			{models.MetricTotalXP, totalXP},
		} {
			earned, err := s.Badges.Evaluate(tx, externalUserID, eval.metric, eval.value)
			if err != nil {
				return err
			}
			for _, b := range earned {
				granted += b.XPReward
			}
			newBadges = append(newBadges, earned...)
		}

		updates, err := s.Challenges.UpdateProgress(tx, externalUserID, ProgressEvent{
			HabitID: habitID,
			Date:    date,
			Streak:  current,
		})
		if err != nil {
			return err
		}
		for _, u := range updates {
			granted += u.XPAwarded
		}

		result = &LogResult{
			HabitID:          habitID,
			Date:             date,
			Streak:           StreakInfo{Current: current, Longest: longest},
			XPGranted:        granted,
			PerfectDay:       perfect,
			NewBadges:        newBadges,
			ChallengeUpdates: updates,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Habit logged: user=%s habit=%s date=%s streak=%d xp=+%d",
		externalUserID, habitID, date, result.Streak.Current, result.XPGranted)
	return result, nil
}

// UndoHabit reverses a completion event: removes the log, recomputes the
// streak, and reverses exactly the XP that event granted. Badge and challenge
// progress stay where they are — progress never decreases.
func (s *GamificationService) UndoHabit(externalUserID, habitID, date string) (*UndoResult, error) {
	if _, err := time.ParseInLocation(models.DateLayout, date, time.UTC); err != nil {
		return nil, NewDomainError(KindConsistency, "invalid date %q, want YYYY-MM-DD", date)
	}

	var result *UndoResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		habit, err := s.loadOwnedHabit(tx, externalUserID, habitID)
		if err != nil {
			return err
		}

		res := tx.Unscoped().
			Where("habit_id = ? AND log_date = ? AND completed = ?", habitID, date, true).
			Delete(&models.HabitLog{})
		if res.Error != nil {
			return wrapStore("delete habit log", res.Error)
		}
		if res.RowsAffected == 0 {
			return NewDomainError(KindNotLogged, "habit %q has no completed log on %s", habit.Name, date)
		}

		current, longest, err := s.recomputeStreak(tx, habit)
		if err != nil {
			return err
		}

		reversals, err := s.Ledger.ReverseByCorrelation(tx, externalUserID, correlationKey(habitID, date))
		if err != nil {
			return err
		}
		var reversed int64
		undidPerfectDay := false
		for _, r := range reversals {
			reversed += -r.Amount
			if r.Source == models.SourcePerfectDay {
				undidPerfectDay = true
			}
		}

		if _, err := s.bumpCounters(tx, externalUserID, -1, undidPerfectDay); err != nil {
			return err
		}

		result = &UndoResult{
			HabitID:    habitID,
			Date:       date,
			Streak:     StreakInfo{Current: current, Longest: longest},
			XPReversed: reversed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("↩️  Habit undone: user=%s habit=%s date=%s streak=%d xp=-%d",
		externalUserID, habitID, date, result.Streak.Current, result.XPReversed)
	return result, nil
}

// loadOwnedHabit fetches a habit and enforces single-user ownership.
func (s *GamificationService) loadOwnedHabit(tx *gorm.DB, externalUserID, habitID string) (*models.Habit, error) {
	var habit models.Habit
	err := tx.Where("id = ? AND external_user_id = ?", habitID, externalUserID).First(&habit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewDomainError(KindNotFound, "habit %s not found for user", habitID)
		}
		return nil, wrapStore("load habit", err)
	}
	return &habit, nil
}

// recomputeStreak rebuilds the habit's streaks from its full log and saves.
func (s *GamificationService) recomputeStreak(tx *gorm.DB, habit *models.Habit) (current, longest int, err error) {
	var logs []models.HabitLog
	if err := tx.Where("habit_id = ?", habit.ID).Find(&logs).Error; err != nil {
		return 0, 0, wrapStore("load habit logs", err)
	}

	current, longest = ComputeStreaks(habit, logs, s.Clock.Now().UTC())
	habit.CurrentStreak = current
	habit.LongestStreak = longest
	if err := tx.Save(habit).Error; err != nil {
		return 0, 0, wrapStore("save habit streaks", err)
	}
	return current, longest, nil
}

// checkPerfectDay reports whether every habit scheduled for the date now has
// a completed log — and whether the perfect-day bonus for that date is still
// unclaimed (net of reversals), so re-completing an unscheduled habit later
// the same day cannot double-grant it.
func (s *GamificationService) checkPerfectDay(tx *gorm.DB, externalUserID, date string) (bool, error) {
	day, err := time.ParseInLocation(models.DateLayout, date, time.UTC)
	if err != nil {
		return false, NewDomainError(KindConsistency, "invalid date %q", date)
	}

	var habits []models.Habit
	if err := tx.Where("external_user_id = ?", externalUserID).Find(&habits).Error; err != nil {
		return false, wrapStore("load user habits", err)
	}

	scheduled := 0
	for _, h := range habits {
		if !h.ScheduledOn(day) {
			continue
		}
		scheduled++
		var done int64
		err := tx.Model(&models.HabitLog{}).
			Where("habit_id = ? AND log_date = ? AND completed = ?", h.ID, date, true).
			Count(&done).Error
		if err != nil {
			return false, wrapStore("check habit log", err)
		}
		if done == 0 {
			return false, nil
		}
	}
	if scheduled == 0 {
		return false, nil
	}

	var net int64
	err = tx.Model(&models.XPTransaction{}).
		Where("external_user_id = ? AND source = ? AND source_id = ?", externalUserID, models.SourcePerfectDay, date).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&net).Error
	if err != nil {
		return false, wrapStore("check perfect day grant", err)
	}
	return net == 0, nil
}

// bumpCounters folds completion/perfect-day counters into UserProgress.
func (s *GamificationService) bumpCounters(tx *gorm.DB, externalUserID string, completionDelta int64, perfectDay bool) (totalCompletions int64, err error) {
	prog, err := s.Ledger.EnsureProgressRecord(tx, externalUserID)
	if err != nil {
		return 0, err
	}
	prog.TotalCompletions += completionDelta
	if prog.TotalCompletions < 0 {
		prog.TotalCompletions = 0
	}
	if perfectDay {
		prog.PerfectDays += completionDelta
		if prog.PerfectDays < 0 {
			prog.PerfectDays = 0
		}
	}
	if err := tx.Save(prog).Error; err != nil {
		return 0, wrapStore("save progress counters", err)
	}
	return prog.TotalCompletions, nil
}
