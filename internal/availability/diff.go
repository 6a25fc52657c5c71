package availability

import (
	"sort"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

// Plan is the set difference between the current permanent pattern and a desired one.
type Plan struct {
	// Keep lists current slots that stay.
	Keep []models.AvailabilitySlot
	// Drop lists current slots absent from the desired pattern.
	Drop []models.AvailabilitySlot
	// Add lists desired positions with no current slot.
	Add []models.SlotKey
}

// Diff compares current permanent slots against the desired set. Duplicate desired keys collapse.
// Results are ordered by day then period.
func Diff(current []models.AvailabilitySlot, desired []models.SlotKey) Plan {
	want := make(map[models.SlotKey]struct{}, len(desired))
	for _, key := range desired {
		want[key] = struct{}{}
	}

	var plan Plan
	have := make(map[models.SlotKey]struct{}, len(current))
	for _, slot := range current {
		key := slot.Key()
		have[key] = struct{}{}
		if _, ok := want[key]; ok {
			plan.Keep = append(plan.Keep, slot)
		} else {
			plan.Drop = append(plan.Drop, slot)
		}
	}
	for key := range want {
		if _, ok := have[key]; !ok {
			plan.Add = append(plan.Add, key)
		}
	}

	sortSlots(plan.Keep)
	sortSlots(plan.Drop)
	sort.Slice(plan.Add, func(i, j int) bool { return lessKey(plan.Add[i], plan.Add[j]) })
	return plan
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Drop) == 0 && len(p.Add) == 0
}

func sortSlots(slots []models.AvailabilitySlot) {
	sort.Slice(slots, func(i, j int) bool { return lessKey(slots[i].Key(), slots[j].Key()) })
}

func lessKey(a, b models.SlotKey) bool {
	if a.DayOfWeek != b.DayOfWeek {
		return a.DayOfWeek < b.DayOfWeek
	}
	return a.PeriodNumber < b.PeriodNumber
}
