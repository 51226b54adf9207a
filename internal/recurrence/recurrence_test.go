package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themoiziqbal/todo-chatbot/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func intp(v int) *int { return &v }

func TestNextOccurrence_Daily(t *testing.T) {
	next, clamped, err := NextOccurrence(date(2025, time.January, 10), models.RecurrenceDaily, 1, nil, nil)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, date(2025, time.January, 11), next)

	next, _, err = NextOccurrence(date(2025, time.January, 10), models.RecurrenceDaily, 3, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 13), next)
}

func TestNextOccurrence_WeeklySimple(t *testing.T) {
	next, _, err := NextOccurrence(date(2025, time.January, 10), models.RecurrenceWeekly, 2, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 24), next)
}

func TestNextOccurrence_WeeklyOnTargetDay(t *testing.T) {
	// 2025-01-06 is a Monday. With day-of-week Monday and interval 2 the
	// next occurrence is exactly 14 days out, not 7.
	base := date(2025, time.January, 6)
	require.Equal(t, time.Monday, base.Weekday())

	next, _, err := NextOccurrence(base, models.RecurrenceWeekly, 2, intp(0), nil)
	require.NoError(t, err)
	assert.Equal(t, base.AddDate(0, 0, 14), next)
}

func TestNextOccurrence_WeeklyForwardOffset(t *testing.T) {
	// 2025-01-07 is a Tuesday; next Friday (4) is 3 days ahead.
	base := date(2025, time.January, 7)

	next, _, err := NextOccurrence(base, models.RecurrenceWeekly, 1, intp(4), nil)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 10), next)

	// Interval 2 lands on the second future Friday.
	next, _, err = NextOccurrence(base, models.RecurrenceWeekly, 2, intp(4), nil)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 17), next)
}

func TestNextOccurrence_WeeklyPastDay(t *testing.T) {
	// 2025-01-08 is a Wednesday; Monday (0) already passed this week.
	base := date(2025, time.January, 8)

	next, _, err := NextOccurrence(base, models.RecurrenceWeekly, 1, intp(0), nil)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.January, 13), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestNextOccurrence_MonthlyClampsToMonthEnd(t *testing.T) {
	// Jan 31 -> Feb 28 in a non-leap year.
	next, clamped, err := NextOccurrence(date(2025, time.January, 31), models.RecurrenceMonthly, 1, nil, intp(31))
	require.NoError(t, err)
	assert.True(t, clamped)
	assert.Equal(t, date(2025, time.February, 28), next)

	// Jan 31 -> Feb 29 in a leap year.
	next, clamped, err = NextOccurrence(date(2024, time.January, 31), models.RecurrenceMonthly, 1, nil, intp(31))
	require.NoError(t, err)
	assert.True(t, clamped)
	assert.Equal(t, date(2024, time.February, 29), next)
}

func TestNextOccurrence_MonthlyYearRollover(t *testing.T) {
	next, clamped, err := NextOccurrence(date(2025, time.November, 15), models.RecurrenceMonthly, 3, nil, nil)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, date(2026, time.February, 15), next)
}

func TestNextOccurrence_MonthlyExplicitDay(t *testing.T) {
	next, _, err := NextOccurrence(date(2025, time.March, 20), models.RecurrenceMonthly, 1, nil, intp(1))
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.April, 1), next)
}

func TestNextOccurrence_UnknownPattern(t *testing.T) {
	_, _, err := NextOccurrence(date(2025, time.January, 1), "yearly", 1, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestShouldSpawnNext(t *testing.T) {
	now := date(2025, time.June, 1)
	past := date(2025, time.May, 1)
	future := date(2025, time.July, 1)

	assert.False(t, ShouldSpawnNext(&past, true, now), "past end date")
	assert.False(t, ShouldSpawnNext(nil, false, now), "paused")
	assert.False(t, ShouldSpawnNext(&now, true, now), "end date reached exactly")
	assert.True(t, ShouldSpawnNext(&future, true, now), "future end date")
	assert.True(t, ShouldSpawnNext(nil, true, now), "no end date")
}

func TestSpawnNextInstance(t *testing.T) {
	due := date(2025, time.January, 10)
	task := models.Task{
		ID:                 7,
		UserID:             42,
		Title:              "water the plants",
		Description:        "balcony first",
		Completed:          true,
		Priority:           models.PriorityMedium,
		Category:           models.CategoryHome,
		DueDate:            &due,
		IsRecurring:        true,
		RecurrencePattern:  models.RecurrenceDaily,
		RecurrenceInterval: 1,
		RecurrenceActive:   true,
	}

	next, err := SpawnNextInstance(task, date(2025, time.January, 10))
	require.NoError(t, err)

	assert.False(t, next.Completed)
	assert.Equal(t, task.Title, next.Title)
	assert.Equal(t, task.UserID, next.UserID)
	require.NotNil(t, next.DueDate)
	assert.Equal(t, date(2025, time.January, 11), *next.DueDate)
	require.NotNil(t, next.ParentRecurrenceID)
	assert.Equal(t, int64(7), *next.ParentRecurrenceID)
}

func TestSpawnNextInstance_KeepsChainRoot(t *testing.T) {
	root := int64(3)
	due := date(2025, time.January, 10)
	task := models.Task{
		ID:                 9,
		UserID:             42,
		Title:              "standup",
		DueDate:            &due,
		IsRecurring:        true,
		RecurrencePattern:  models.RecurrenceDaily,
		RecurrenceInterval: 1,
		ParentRecurrenceID: &root,
		RecurrenceActive:   true,
	}

	next, err := SpawnNextInstance(task, due)
	require.NoError(t, err)
	require.NotNil(t, next.ParentRecurrenceID)
	assert.Equal(t, root, *next.ParentRecurrenceID, "spawned instances point at the chain root, not the previous instance")
}

func TestSpawnNextInstance_NoDueDateDefaultsToTomorrowNoon(t *testing.T) {
	now := time.Date(2025, time.March, 3, 18, 30, 0, 0, time.UTC)
	task := models.Task{
		ID:                 1,
		UserID:             1,
		Title:              "journal",
		IsRecurring:        true,
		RecurrencePattern:  models.RecurrenceDaily,
		RecurrenceInterval: 1,
		RecurrenceActive:   true,
	}

	next, err := SpawnNextInstance(task, now)
	require.NoError(t, err)
	require.NotNil(t, next.DueDate)
	// Base is tomorrow noon, daily interval 1 lands the day after.
	assert.Equal(t, time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC), *next.DueDate)
}
