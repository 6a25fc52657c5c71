// Package availability resolves a calendar's weekly template and overrides into the concrete
// slot instances that can be booked on a date, and plans edits to that template.
package availability

import (
	"sort"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

// MaxRangeDays bounds ProjectRange.
const MaxRangeDays = 62

// ProjectedSlot is a slot instance that is bookable on Date.
type ProjectedSlot struct {
	Slot      models.AvailabilitySlot
	Date      models.Date
	Temporary bool
}

// SlotProjectsOn reports whether slot yields a bookable instance on date. The weekday is not
// checked here.
func SlotProjectsOn(slot models.AvailabilitySlot, date models.Date) bool {
	if slot.IsPermanent() {
		for _, ex := range slot.Exceptions {
			if covers(ex.StartDate, ex.EndDate, date) {
				return false
			}
		}
		return true
	}
	if slot.ValidFrom == nil || slot.ValidUntil == nil {
		// half-open windows are never written by the editor
		return false
	}
	return covers(*slot.ValidFrom, *slot.ValidUntil, date)
}

// Offered reports whether slot is the instance Project lists for its (day, period) on date,
// weekday aside. siblings are the calendar's other slots and must carry their exceptions.
func Offered(slot models.AvailabilitySlot, siblings []models.AvailabilitySlot, date models.Date) bool {
	if !SlotProjectsOn(slot, date) {
		return false
	}
	for _, other := range siblings {
		if other.ID == slot.ID || other.Key() != slot.Key() || !SlotProjectsOn(other, date) {
			continue
		}
		if outranks(other, slot) {
			return false
		}
	}
	return true
}

// Project returns the slot instances bookable on date, one per period, ordered by period.
// A temporary slot always takes the place of a permanent slot at the same (day, period).
// Slots must carry their exceptions.
func Project(slots []models.AvailabilitySlot, date models.Date) []ProjectedSlot {
	dow := int(date.Weekday())
	chosen := make(map[models.SlotKey]models.AvailabilitySlot)

	for _, slot := range slots {
		if slot.DayOfWeek != dow || !SlotProjectsOn(slot, date) {
			continue
		}
		key := slot.Key()
		current, exists := chosen[key]
		if !exists || outranks(slot, current) {
			chosen[key] = slot
		}
	}

	out := make([]ProjectedSlot, 0, len(chosen))
	for _, slot := range chosen {
		out = append(out, ProjectedSlot{Slot: slot, Date: date, Temporary: !slot.IsPermanent()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Slot.PeriodNumber < out[j].Slot.PeriodNumber
	})
	return out
}

// DayProjection is the projection of a single date.
type DayProjection struct {
	Date  models.Date
	Slots []ProjectedSlot
}

// ProjectRange projects every date in [from, to] in date order. Callers bound the range with
// MaxRangeDays.
func ProjectRange(slots []models.AvailabilitySlot, from, to models.Date) []DayProjection {
	var out []DayProjection
	for d := from; !d.After(to.Time); d = d.AddDays(1) {
		out = append(out, DayProjection{Date: d, Slots: Project(slots, d)})
	}
	return out
}

// outranks reports whether candidate should replace current at the same (day, period).
func outranks(candidate, current models.AvailabilitySlot) bool {
	candTemp, curTemp := !candidate.IsPermanent(), !current.IsPermanent()
	if candTemp != curTemp {
		return candTemp
	}
	if candTemp {
		if !candidate.ValidFrom.Equal(current.ValidFrom.Time) {
			return candidate.ValidFrom.After(current.ValidFrom.Time)
		}
	}
	return candidate.ID < current.ID
}

func covers(start, end, date models.Date) bool {
	return !date.Before(start.Time) && !date.After(end.Time)
}
