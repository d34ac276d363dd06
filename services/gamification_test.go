package services_test

import (
	"testing"

	"habit-gamification-system/models"
	"habit-gamification-system/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogHabitGrantsBaseAndFirstBadges(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	habit := env.createHabit(t, user, "Read")

	res, err := env.gamification.LogHabit(user, habit.ID, dateOffset(0))
	require.NoError(t, err)

	// base XP + perfect day (only habit, completed) + COMPLETE_1 badge
	assert.Equal(t, 1, res.Streak.Current)
	assert.True(t, res.PerfectDay)
	assert.Equal(t, services.BaseCompletionXP+services.PerfectDayXP+int64(10), res.XPGranted)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, "COMPLETE_1", res.NewBadges[0].Code)
}

func TestLogHabitRejectsDuplicate(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	habit := env.createHabit(t, user, "Read")

	_, err := env.gamification.LogHabit(user, habit.ID, dateOffset(0))
	require.NoError(t, err)

	_, err = env.gamification.LogHabit(user, habit.ID, dateOffset(0))
	assert.True(t, services.IsKind(err, services.KindAlreadyLogged))

	// nothing was granted twice
	total, err := env.ledger.TotalXP(user)
	require.NoError(t, err)
	assert.Equal(t, services.BaseCompletionXP+services.PerfectDayXP+int64(10), total)
}

func TestLogHabitRejectsUnownedHabit(t *testing.T) {
	env := setupEnv(t)
	habit := env.createHabit(t, "user-1", "Read")

	_, err := env.gamification.LogHabit("user-2", habit.ID, dateOffset(0))
	assert.True(t, services.IsKind(err, services.KindNotFound))
}

func TestLogHabitRejectsBadDate(t *testing.T) {
	env := setupEnv(t)
	habit := env.createHabit(t, "user-1", "Read")

	_, err := env.gamification.LogHabit("user-1", habit.ID, "15-06-2025")
	assert.True(t, services.IsKind(err, services.KindConsistency))
}

func TestLogUndoRestoresXPAndStreak(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	habit := env.createHabit(t, user, "Read")
	env.createHabit(t, user, "Run") // never logged, keeps days imperfect

	_, err := env.gamification.LogHabit(user, habit.ID, dateOffset(-2))
	require.NoError(t, err)
	_, err = env.gamification.LogHabit(user, habit.ID, dateOffset(-1))
	require.NoError(t, err)

	before, err := env.ledger.TotalXP(user)
	require.NoError(t, err)

	res, err := env.gamification.LogHabit(user, habit.ID, dateOffset(0))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Streak.Current)
	assert.Equal(t, services.BaseCompletionXP, res.XPGranted)

	undo, err := env.gamification.UndoHabit(user, habit.ID, dateOffset(0))
	require.NoError(t, err)
	assert.Equal(t, 2, undo.Streak.Current)
	assert.Equal(t, services.BaseCompletionXP, undo.XPReversed)

	after, err := env.ledger.TotalXP(user)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	var fresh models.Habit
	require.NoError(t, env.db.Where("id = ?", habit.ID).First(&fresh).Error)
	assert.Equal(t, 2, fresh.CurrentStreak)

	var prog models.UserProgress
	require.NoError(t, env.db.Where("external_user_id = ?", user).First(&prog).Error)
	assert.Equal(t, int64(2), prog.TotalCompletions)
}

func TestUndoNeverUnEarnsBadges(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	habit := env.createHabit(t, user, "Read")

	res, err := env.gamification.LogHabit(user, habit.ID, dateOffset(0))
	require.NoError(t, err)
	require.Len(t, res.NewBadges, 1)

	undo, err := env.gamification.UndoHabit(user, habit.ID, dateOffset(0))
	require.NoError(t, err)
	// base and perfect-day come back, badge XP does not
	assert.Equal(t, services.BaseCompletionXP+services.PerfectDayXP, undo.XPReversed)

	var bp models.BadgeProgress
	require.NoError(t, env.db.
		Where("external_user_id = ? AND badge_code = ?", user, "COMPLETE_1").
		First(&bp).Error)
	assert.Equal(t, models.BadgeStateEarned, bp.State)

	total, err := env.ledger.TotalXP(user)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
}

func TestUndoWithoutLog(t *testing.T) {
	env := setupEnv(t)
	habit := env.createHabit(t, "user-1", "Read")

	_, err := env.gamification.UndoHabit("user-1", habit.ID, dateOffset(0))
	assert.True(t, services.IsKind(err, services.KindNotLogged))
}

func TestUndoIsIdempotentPerDate(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	habit := env.createHabit(t, user, "Read")

	_, err := env.gamification.LogHabit(user, habit.ID, dateOffset(0))
	require.NoError(t, err)
	_, err = env.gamification.UndoHabit(user, habit.ID, dateOffset(0))
	require.NoError(t, err)

	_, err = env.gamification.UndoHabit(user, habit.ID, dateOffset(0))
	assert.True(t, services.IsKind(err, services.KindNotLogged))
}

func TestStreakMilestoneBonus(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	habit := env.createHabit(t, user, "Read")
	env.createHabit(t, user, "Run")

	for d := -6; d < 0; d++ {
		_, err := env.gamification.LogHabit(user, habit.ID, dateOffset(d))
		require.NoError(t, err)
	}

	res, err := env.gamification.LogHabit(user, habit.ID, dateOffset(0))
	require.NoError(t, err)
	assert.Equal(t, 7, res.Streak.Current)

	// base + 7-day milestone + STREAK_7 badge reward
	assert.Equal(t, services.BaseCompletionXP+services.StreakMilestones[7]+int64(50), res.XPGranted)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, "STREAK_7", res.NewBadges[0].Code)
}

func TestBackdatedFillCrossesMilestone(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	habit := env.createHabit(t, user, "Read")
	env.createHabit(t, user, "Run")

	// streak 3 in front of the gap, 4 behind it
	for _, d := range []int{-8, -7, -6, -5, -3, -2, -1} {
		_, err := env.gamification.LogHabit(user, habit.ID, dateOffset(d))
		require.NoError(t, err)
	}

	res, err := env.gamification.LogHabit(user, habit.ID, dateOffset(-4))
	require.NoError(t, err)
	assert.Equal(t, 8, res.Streak.Current)

	// jumping 3 -> 8 still pays the 7-day milestone, plus the STREAK_7 badge
	assert.Equal(t, services.BaseCompletionXP+services.StreakMilestones[7]+int64(50), res.XPGranted)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, "STREAK_7", res.NewBadges[0].Code)

	var bonuses int64
	env.db.Model(&models.XPTransaction{}).
		Where("external_user_id = ? AND source = ? AND amount > 0", user, models.SourceStreakBonus).
		Count(&bonuses)
	assert.Equal(t, int64(1), bonuses, "milestone paid exactly once")
}

func TestPerfectDayBonusRequiresAllScheduledHabits(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	h1 := env.createHabit(t, user, "Read")
	h2 := env.createHabit(t, user, "Run")

	res, err := env.gamification.LogHabit(user, h1.ID, dateOffset(0))
	require.NoError(t, err)
	assert.False(t, res.PerfectDay)

	res, err = env.gamification.LogHabit(user, h2.ID, dateOffset(0))
	require.NoError(t, err)
	assert.True(t, res.PerfectDay)

	var prog models.UserProgress
	require.NoError(t, env.db.Where("external_user_id = ?", user).First(&prog).Error)
	assert.Equal(t, int64(1), prog.PerfectDays)
}

func TestPerfectDayBonusReclaimableAfterUndo(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	h1 := env.createHabit(t, user, "Read")
	h2 := env.createHabit(t, user, "Run")

	_, err := env.gamification.LogHabit(user, h1.ID, dateOffset(0))
	require.NoError(t, err)
	res, err := env.gamification.LogHabit(user, h2.ID, dateOffset(0))
	require.NoError(t, err)
	require.True(t, res.PerfectDay)

	undo, err := env.gamification.UndoHabit(user, h2.ID, dateOffset(0))
	require.NoError(t, err)
	assert.Equal(t, services.BaseCompletionXP+services.PerfectDayXP, undo.XPReversed)

	var prog models.UserProgress
	require.NoError(t, env.db.Where("external_user_id = ?", user).First(&prog).Error)
	assert.Equal(t, int64(0), prog.PerfectDays)

	// the day becomes perfect again once the habit is re-completed
	res, err = env.gamification.LogHabit(user, h2.ID, dateOffset(0))
	require.NoError(t, err)
	assert.True(t, res.PerfectDay)
}

func TestUnscheduledHabitDoesNotBlockPerfectDay(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	h1 := env.createHabit(t, user, "Read")

	// testNow is a Sunday; a Mon/Wed/Fri habit is not scheduled today
	weekday := models.Habit{
		ID:             uuid.NewString(),
		Name:           "Gym",
		ExternalUserID: user,
		Frequency:      models.FrequencyCustom,
		ScheduleDays:   []int{1, 3, 5},
	}
	require.NoError(t, env.db.Create(&weekday).Error)

	res, err := env.gamification.LogHabit(user, h1.ID, dateOffset(0))
	require.NoError(t, err)
	assert.True(t, res.PerfectDay)
}
