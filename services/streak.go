package services

import (
	"sort"
	"time"

	"habit-gamification-system/models"
)

// ComputeStreaks derives a habit's current and longest streak from its
// completion log. Pure function: logs may be unsorted and may contain
// non-completed entries; dates are calendar dates (YYYY-MM-DD), already
// normalized to the user's start-of-day by the caller.
//
// A streak is a run of consecutive calendar days ending at today or
// yesterday. The walk is not schedule-aware: a habit scheduled Mon/Wed/Fri
// still needs a log on every calendar day to keep the streak alive.
// The longest streak never shrinks below the stored historical best.
func ComputeStreaks(habit *models.Habit, logs []models.HabitLog, today time.Time) (current, longest int) {
	longest = habit.LongestStreak

	dates := completedDates(logs)
	if len(dates) == 0 {
		return 0, longest
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	today = truncateDay(today)
	last := dates[0]
	if daysBetween(last, today) > 1 {
		// most recent completion is older than yesterday: streak broken
		return 0, longest
	}

	expected := last
	for _, d := range dates {
		switch {
		case d.Equal(expected):
			current++
			expected = expected.AddDate(0, 0, -1)
		case d.After(expected):
			// duplicate of an already-counted day, skip
			continue
		default:
			// gap — walk stops here
			return finish(current, longest)
		}
	}
	return finish(current, longest)
}

func finish(current, longest int) (int, int) {
	if current > longest {
		longest = current
	}
	return current, longest
}

// completedDates filters to completed entries and parses their calendar dates.
func completedDates(logs []models.HabitLog) []time.Time {
	var out []time.Time
	for _, l := range logs {
		if !l.Completed {
			continue
		}
		d, err := time.ParseInLocation(models.DateLayout, l.LogDate, time.UTC)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(truncateDay(b).Sub(truncateDay(a)).Hours() / 24)
}
