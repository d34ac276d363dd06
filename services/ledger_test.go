package services_test

import (
	"testing"
	"time"

	"habit-gamification-system/models"
	"habit-gamification-system/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGrantAndTotal(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.ledger.Grant(tx, user, 10, models.SourceHabitComplete, "habit-1", "habit-1:2025-06-15")
		require.NoError(t, err)
		_, err = env.ledger.Grant(tx, user, 50, models.SourceStreakBonus, "habit-1", "habit-1:2025-06-15")
		return err
	})
	require.NoError(t, err)

	total, err := env.ledger.TotalXP(user)
	require.NoError(t, err)
	assert.Equal(t, int64(60), total)

	var prog models.UserProgress
	require.NoError(t, env.db.Where("external_user_id = ?", user).First(&prog).Error)
	assert.Equal(t, int64(60), prog.TotalXP)
	assert.Equal(t, 1, prog.Level)
}

func TestGrantRejectsNonPositive(t *testing.T) {
	env := setupEnv(t)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.ledger.Grant(tx, "user-1", 0, models.SourceHabitComplete, "habit-1", "")
		return err
	})
	assert.True(t, services.IsKind(err, services.KindConsistency))

	err = env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.ledger.Grant(tx, "user-1", -5, models.SourceHabitComplete, "habit-1", "")
		return err
	})
	assert.True(t, services.IsKind(err, services.KindConsistency))
}

func TestReverseRoundTrip(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"

	var grant *models.XPTransaction
	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		var err error
		grant, err = env.ledger.Grant(tx, user, 10, models.SourceHabitComplete, "habit-1", "")
		return err
	}))

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		rev, err := env.ledger.Reverse(tx, grant.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(-10), rev.Amount)
		assert.Equal(t, grant.Source, rev.Source)
		assert.Equal(t, grant.SourceID, rev.SourceID)
		require.NotNil(t, rev.ReversalOf)
		assert.Equal(t, grant.ID, *rev.ReversalOf)
		return nil
	}))

	total, err := env.ledger.TotalXP(user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestReverseIsIdempotent(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"

	var grant *models.XPTransaction
	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		var err error
		grant, err = env.ledger.Grant(tx, user, 10, models.SourceHabitComplete, "habit-1", "")
		return err
	}))

	var first, second *models.XPTransaction
	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = env.ledger.Reverse(tx, grant.ID)
		require.NoError(t, err)
		second, err = env.ledger.Reverse(tx, grant.ID)
		return err
	}))

	assert.Equal(t, first.ID, second.ID, "second reverse returns the existing reversal")

	total, err := env.ledger.TotalXP(user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total, "no double subtraction")
}

func TestReverseMissingOriginal(t *testing.T) {
	env := setupEnv(t)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.ledger.Reverse(tx, "no-such-id")
		return err
	})
	assert.True(t, services.IsKind(err, services.KindConsistency))
}

func TestReverseOfReversalRejected(t *testing.T) {
	env := setupEnv(t)

	var revID string
	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		grant, err := env.ledger.Grant(tx, "user-1", 10, models.SourceHabitComplete, "habit-1", "")
		require.NoError(t, err)
		rev, err := env.ledger.Reverse(tx, grant.ID)
		require.NoError(t, err)
		revID = rev.ID
		return nil
	}))

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.ledger.Reverse(tx, revID)
		return err
	})
	assert.True(t, services.IsKind(err, services.KindConsistency))
}

func TestTotalXPNeverNegative(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"

	// Seed a grant whose reversal would leave the ledger negative: simulate
	// drift by appending a manual negative adjustment first.
	var grant *models.XPTransaction
	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		var err error
		grant, err = env.ledger.Grant(tx, user, 10, models.SourceHabitComplete, "habit-1", "")
		return err
	}))

	other := models.XPTransaction{
		ID:             "manual-adjust",
		ExternalUserID: user,
		Amount:         -5,
		Source:         models.SourceHabitComplete,
		SourceID:       "habit-1",
		CreatedAt:      testNow,
	}
	require.NoError(t, env.db.Create(&other).Error)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, err := env.ledger.Reverse(tx, grant.ID)
		return err
	})
	assert.True(t, services.IsKind(err, services.KindConsistency),
		"reversal below zero must fail, not clamp")

	total, err := env.ledger.TotalXP(user)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(0))
}

func TestReverseByCorrelation(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"
	const key = "habit-1:2025-06-15"

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		if _, err := env.ledger.Grant(tx, user, 10, models.SourceHabitComplete, "habit-1", key); err != nil {
			return err
		}
		if _, err := env.ledger.Grant(tx, user, 50, models.SourceStreakBonus, "habit-1", key); err != nil {
			return err
		}
		// unrelated grant stays untouched
		_, err := env.ledger.Grant(tx, user, 25, models.SourcePerfectDay, "2025-06-14", "habit-1:2025-06-14")
		return err
	}))

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		reversals, err := env.ledger.ReverseByCorrelation(tx, user, key)
		require.NoError(t, err)
		assert.Len(t, reversals, 2)
		return nil
	}))

	total, err := env.ledger.TotalXP(user)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)

	// second pass is a no-op
	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		reversals, err := env.ledger.ReverseByCorrelation(tx, user, key)
		require.NoError(t, err)
		assert.Empty(t, reversals)
		return nil
	}))
}

func TestGetBreakdown(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		if _, err := env.ledger.Grant(tx, user, 150, models.SourceHabitComplete, "habit-1", ""); err != nil {
			return err
		}
		_, err := env.ledger.Grant(tx, user, 50, models.SourceBadgeUnlock, "STREAK_7", "")
		return err
	}))

	b, err := env.ledger.GetBreakdown(user)
	require.NoError(t, err)
	assert.Equal(t, int64(200), b.TotalXP)
	assert.Equal(t, 2, b.Level)
	assert.Equal(t, int64(200), b.XPToday)
	assert.Equal(t, int64(200), b.XPThisWeek)
	assert.Equal(t, int64(200), b.XPThisMonth)

	bySource := map[models.XPSource]int64{}
	for _, e := range b.SourceBreakdown {
		bySource[e.Source] = e.Amount
	}
	assert.Equal(t, int64(150), bySource[models.SourceHabitComplete])
	assert.Equal(t, int64(50), bySource[models.SourceBadgeUnlock])
	assert.Equal(t, services.BaseCompletionXP, b.Economy.BaseCompletionXP)
}

func TestGetHistoryPaging(t *testing.T) {
	env := setupEnv(t)
	const user = "user-1"

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 5; i++ {
			if _, err := env.ledger.Grant(tx, user, 10, models.SourceHabitComplete, "habit-1", ""); err != nil {
				return err
			}
			env.clock.Advance(time.Second)
		}
		return nil
	}))

	page, err := env.ledger.GetHistory(user, 3, 0)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 3)
	assert.Equal(t, int64(5), page.Total)
	assert.True(t, page.HasMore)

	page, err = env.ledger.GetHistory(user, 3, 3)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 2)
	assert.False(t, page.HasMore)
}
