package services_test

import (
	"testing"
	"time"

	"habit-gamification-system/models"
	"habit-gamification-system/services"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testNow is the pinned wall clock for every suite. Dates in fixtures are
// relative to it.
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.HabitUser{},
		&models.Habit{},
		&models.HabitLog{},
		&models.XPTransaction{},
		&models.BadgeProgress{},
		&models.Challenge{},
		&models.ChallengeParticipant{},
		&models.UserProgress{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

type testEnv struct {
	db           *gorm.DB
	clock        *clockwork.FakeClock
	ledger       *services.LedgerService
	badges       *services.BadgeService
	challenges   *services.ChallengeService
	gamification *services.GamificationService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	clock := clockwork.NewFakeClockAt(testNow)
	ledger := services.NewLedgerService(db, clock)
	badges := services.NewBadgeService(db, ledger, clock)
	challenges := services.NewChallengeService(db, ledger, clock)
	gamification := services.NewGamificationService(db, ledger, badges, challenges, clock)

	return &testEnv{
		db:           db,
		clock:        clock,
		ledger:       ledger,
		badges:       badges,
		challenges:   challenges,
		gamification: gamification,
	}
}

func (e *testEnv) createHabit(t *testing.T, userID, name string) *models.Habit {
	t.Helper()

	habit := models.Habit{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Name:           name,
		Frequency:      models.FrequencyDaily,
		DailyGoal:      1,
	}
	if err := e.db.Create(&habit).Error; err != nil {
		t.Fatalf("Failed to create habit: %v", err)
	}
	return &habit
}

// dateOffset formats testNow shifted by the given number of days.
func dateOffset(days int) string {
	return testNow.AddDate(0, 0, days).Format(models.DateLayout)
}
