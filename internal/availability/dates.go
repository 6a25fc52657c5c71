package availability

import (
	"fmt"
	"time"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

// Today is the UTC calendar date of now.
func Today(now time.Time) models.Date {
	return models.NewDate(now)
}

// WeekRange is the Sunday to Saturday week containing now, in UTC.
func WeekRange(now time.Time) (models.Date, models.Date) {
	today := Today(now)
	start := today.AddDays(-int(today.Weekday()))
	return start, start.AddDays(6)
}

// MonthRange is the first to last day of the month containing now, in UTC.
func MonthRange(now time.Time) (models.Date, models.Date) {
	today := Today(now)
	start := models.Date{Time: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)}
	end := models.Date{Time: start.AddDate(0, 1, -1)}
	return start, end
}

// ScopeRange returns the date range a scoped edit applies to. Permanent edits have none.
func ScopeRange(scope models.EditScope, now time.Time) (models.Date, models.Date, error) {
	switch scope {
	case models.ScopeWeek:
		start, end := WeekRange(now)
		return start, end, nil
	case models.ScopeMonth:
		start, end := MonthRange(now)
		return start, end, nil
	default:
		return models.Date{}, models.Date{}, fmt.Errorf("scope %q has no date range", scope)
	}
}

// MeetsLeadTime reports whether the start of date is at least lead after now.
func MeetsLeadTime(date models.Date, now time.Time, lead time.Duration) bool {
	return date.Sub(now) >= lead
}

// Overlaps reports whether two inclusive date ranges share a day.
func Overlaps(aStart, aEnd, bStart, bEnd models.Date) bool {
	return !aStart.After(bEnd.Time) && !aEnd.Before(bStart.Time)
}
