// Package recurrence computes the next occurrence of a repeating task and
// decides when a completed instance should spawn its successor. It is pure:
// callers supply the clock, nothing here touches storage.
package recurrence

import (
	"errors"
	"time"

	"github.com/themoiziqbal/todo-chatbot/internal/models"
)

// ErrInvalidPattern is returned for a recurrence pattern outside the
// daily/weekly/monthly set. Schema validation upstream should make this
// unreachable.
var ErrInvalidPattern = errors.New("invalid recurrence pattern")

// DefaultBase is the base date used when a recurring task carries no due
// date: tomorrow at noon UTC.
func DefaultBase(now time.Time) time.Time {
	t := now.UTC().AddDate(0, 0, 1)
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
}

// NextOccurrence computes the next due date after base for the given
// pattern. The returned bool reports whether a monthly target day was
// clamped to the end of a shorter month (Jan 31 -> Feb 28/29).
//
// dayOfWeek uses 0=Monday..6=Sunday. dayOfMonth is 1-31. Either may be nil.
func NextOccurrence(base time.Time, pattern models.RecurrencePattern, interval int, dayOfWeek, dayOfMonth *int) (time.Time, bool, error) {
	if interval < 1 {
		interval = 1
	}

	switch pattern {
	case models.RecurrenceDaily:
		return base.AddDate(0, 0, interval), false, nil

	case models.RecurrenceWeekly:
		if dayOfWeek == nil {
			return base.AddDate(0, 0, 7*interval), false, nil
		}
		return nextWeekday(base, *dayOfWeek, interval), false, nil

	case models.RecurrenceMonthly:
		next, clamped := nextMonthly(base, interval, dayOfMonth)
		return next, clamped, nil

	default:
		return time.Time{}, false, ErrInvalidPattern
	}
}

// nextWeekday returns the interval-th future occurrence of the target
// weekday. When base already falls on the target day (or the day has passed
// this week) the first hit is a full interval of weeks away; otherwise the
// hit within this week counts as the first occurrence.
func nextWeekday(base time.Time, target, interval int) time.Time {
	daysAhead := target - mondayIndexed(base.Weekday())
	if daysAhead <= 0 {
		daysAhead += 7 * interval
	} else if interval > 1 {
		daysAhead += 7 * (interval - 1)
	}
	return base.AddDate(0, 0, daysAhead)
}

// mondayIndexed converts Go's Sunday=0 weekday to the 0=Monday convention
// used by the day_of_week field.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func nextMonthly(base time.Time, interval int, dayOfMonth *int) (time.Time, bool) {
	month := int(base.Month()) + interval
	year := base.Year()
	for month > 12 {
		month -= 12
		year++
	}

	day := base.Day()
	if dayOfMonth != nil {
		day = *dayOfMonth
	}

	clamped := false
	if last := daysInMonth(year, time.Month(month)); day > last {
		day = last
		clamped = true
	}

	next := time.Date(year, time.Month(month), day,
		base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())
	return next, clamped
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ShouldSpawnNext gates spawning of the successor instance: false when the
// recurrence is paused or its end date has been reached. The check reads no
// other in-flight state; the storage layer carries the uniqueness guard
// that closes the concurrent-completion race.
func ShouldSpawnNext(endDate *time.Time, active bool, now time.Time) bool {
	if !active {
		return false
	}
	if endDate != nil && !now.Before(*endDate) {
		return false
	}
	return true
}

// SpawnNextInstance builds the successor task for a completed recurring
// task. The recurrence configuration is copied verbatim, the completion
// flag reset, and the due date advanced by NextOccurrence. The parent link
// always points at the root of the chain: the completed task's own parent
// when it has one, else the completed task itself.
func SpawnNextInstance(completed models.Task, now time.Time) (models.Task, error) {
	base := DefaultBase(now)
	if completed.DueDate != nil {
		base = *completed.DueDate
	}

	nextDue, _, err := NextOccurrence(base, completed.RecurrencePattern, completed.RecurrenceInterval,
		completed.RecurrenceDayOfWeek, completed.RecurrenceDayOfMonth)
	if err != nil {
		return models.Task{}, err
	}

	parent := completed.ID
	if completed.ParentRecurrenceID != nil {
		parent = *completed.ParentRecurrenceID
	}

	next := models.Task{
		UserID:               completed.UserID,
		Title:                completed.Title,
		Description:          completed.Description,
		Completed:            false,
		Priority:             completed.Priority,
		Category:             completed.Category,
		DueDate:              &nextDue,
		IsRecurring:          true,
		RecurrencePattern:    completed.RecurrencePattern,
		RecurrenceInterval:   completed.RecurrenceInterval,
		RecurrenceEndDate:    completed.RecurrenceEndDate,
		RecurrenceDayOfWeek:  completed.RecurrenceDayOfWeek,
		RecurrenceDayOfMonth: completed.RecurrenceDayOfMonth,
		ParentRecurrenceID:   &parent,
		RecurrenceActive:     true,
	}
	return next, nil
}
