package summary

import (
	"time"

	"github.com/hyperjump/tsuzuri/internal/models"
)

// WeekStart returns the Monday 00:00 of the week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// MonthStart returns the first day of the month containing t.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// YearStart returns January 1st of the year containing t.
func YearStart(t time.Time) time.Time {
	return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
}

// PrevCompletedWeek returns the start of the most recent fully elapsed week.
func PrevCompletedWeek(now time.Time) time.Time {
	return WeekStart(now).AddDate(0, 0, -7)
}

// PrevCompletedMonth returns the start of the most recent fully elapsed month.
func PrevCompletedMonth(now time.Time) time.Time {
	return MonthStart(now).AddDate(0, -1, 0)
}

// PrevCompletedYear returns the start of the most recent fully elapsed year.
func PrevCompletedYear(now time.Time) time.Time {
	return YearStart(now).AddDate(-1, 0, 0)
}

// PeriodEnd returns the exclusive end of the period starting at start.
func PeriodEnd(kind models.PeriodKind, start time.Time) time.Time {
	switch kind {
	case models.PeriodMonthly:
		return start.AddDate(0, 1, 0)
	case models.PeriodYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 7)
	}
}
