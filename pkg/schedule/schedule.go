// Package schedule computes when a recurring automation next runs.
package schedule

import (
	"time"

	"github.com/vpnda/potpilot/pkg/models"
)

// RunHour is the local hour automations run at
const RunHour = 9

// NextRunAt returns the next run instant for the recurrence, at RunHour in
// now's location. It is pure: the caller supplies now.
func NextRunAt(freq models.Frequency, dayOfWeek, dayOfMonth *int, now time.Time) (time.Time, error) {
	if err := models.ValidateRecurrence(freq, dayOfWeek, dayOfMonth); err != nil {
		return time.Time{}, err
	}

	if freq == models.FrequencyWeekly {
		return nextWeekly(time.Weekday(*dayOfWeek), now), nil
	}
	return nextMonthly(*dayOfMonth, now), nil
}

// For is NextRunAt for a stored automation
func For(a *models.Automation, now time.Time) (time.Time, error) {
	return NextRunAt(a.Frequency, a.DayOfWeek, a.DayOfMonth, now)
}

func nextWeekly(target time.Weekday, now time.Time) time.Time {
	days := int(target) - int(now.Weekday())
	if days < 0 || (days == 0 && now.Hour() >= RunHour) {
		days += 7
	}
	return anchor(now.Year(), now.Month(), now.Day()+days, now.Location())
}

func nextMonthly(dayOfMonth int, now time.Time) time.Time {
	next := anchor(now.Year(), now.Month(), clamp(dayOfMonth, now.Year(), now.Month()), now.Location())
	if next.After(now) {
		return next
	}

	// Normalise from the first so a short month is not skipped.
	first := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
	return anchor(first.Year(), first.Month(), clamp(dayOfMonth, first.Year(), first.Month()), now.Location())
}

func anchor(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, RunHour, 0, 0, 0, loc)
}

func clamp(day, year int, month time.Month) int {
	return min(day, daysIn(year, month))
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
