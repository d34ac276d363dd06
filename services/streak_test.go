package services_test

import (
	"testing"

	"habit-gamification-system/models"
	"habit-gamification-system/services"

	"github.com/stretchr/testify/assert"
)

func logsOn(offsets ...int) []models.HabitLog {
	logs := make([]models.HabitLog, 0, len(offsets))
	for _, d := range offsets {
		logs = append(logs, models.HabitLog{LogDate: dateOffset(d), Completed: true})
	}
	return logs
}

func TestComputeStreaks(t *testing.T) {
	tests := []struct {
		name        string
		longest     int
		logs        []models.HabitLog
		wantCurrent int
		wantLongest int
	}{
		{
			name:        "no logs",
			longest:     5,
			logs:        nil,
			wantCurrent: 0,
			wantLongest: 5,
		},
		{
			name:        "three consecutive days ending today",
			logs:        logsOn(-2, -1, 0),
			wantCurrent: 3,
			wantLongest: 3,
		},
		{
			name:        "gap two days back",
			logs:        logsOn(-4, -1, 0),
			wantCurrent: 2,
			wantLongest: 2,
		},
		{
			name:        "nothing since two days ago breaks streak",
			logs:        logsOn(-4, -3, -2),
			wantCurrent: 0,
			wantLongest: 0,
		},
		{
			name:        "streak ending yesterday still counts",
			logs:        logsOn(-3, -2, -1),
			wantCurrent: 3,
			wantLongest: 3,
		},
		{
			name:        "unsorted input",
			logs:        logsOn(0, -2, -1),
			wantCurrent: 3,
			wantLongest: 3,
		},
		{
			name:        "historical longest never shrinks",
			longest:     10,
			logs:        logsOn(-1, 0),
			wantCurrent: 2,
			wantLongest: 10,
		},
		{
			name:    "non-completed entries are ignored",
			longest: 0,
			logs: append(logsOn(-1, 0),
				models.HabitLog{LogDate: dateOffset(-2), Completed: false}),
			wantCurrent: 2,
			wantLongest: 2,
		},
		{
			name: "duplicate dates counted once",
			logs: append(logsOn(-1, 0),
				models.HabitLog{LogDate: dateOffset(0), Completed: true}),
			wantCurrent: 2,
			wantLongest: 2,
		},
		{
			name:        "single log today",
			logs:        logsOn(0),
			wantCurrent: 1,
			wantLongest: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			habit := &models.Habit{LongestStreak: tt.longest}
			current, longest := services.ComputeStreaks(habit, tt.logs, testNow)
			assert.Equal(t, tt.wantCurrent, current, "current streak")
			assert.Equal(t, tt.wantLongest, longest, "longest streak")
		})
	}
}

func TestComputeStreaksIgnoresSchedule(t *testing.T) {
	// A Mon/Wed/Fri habit still needs logs on consecutive calendar days —
	// the walk is not schedule-aware.
	habit := &models.Habit{
		Frequency:    models.FrequencyCustom,
		ScheduleDays: []int{1, 3, 5},
	}
	current, _ := services.ComputeStreaks(habit, logsOn(-2, -1, 0), testNow)
	assert.Equal(t, 3, current)
}
