package models

import (
	"time"

	"github.com/lib/pq"
)

// Calendar is a teacher's bookable schedule shared with students through its code.
type Calendar struct {
	ID                 string        `db:"id" json:"id"`
	TeacherID          string        `db:"teacher_id" json:"teacher_id"`
	Name               string        `db:"name" json:"name"`
	Code               string        `db:"code" json:"code"`
	IsActive           bool          `db:"is_active" json:"is_active"`
	AllowedGrades      pq.Int64Array `db:"allowed_grades" json:"allowed_grades"`
	MaxStudentsPerSlot int           `db:"max_students_per_slot" json:"max_students_per_slot"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// AllowsGrade reports whether students of grade may book this calendar.
func (c *Calendar) AllowsGrade(grade int) bool {
	for _, g := range c.AllowedGrades {
		if int(g) == grade {
			return true
		}
	}
	return false
}

// CalendarSummary is a calendar with its permanent weekly pattern.
type CalendarSummary struct {
	Calendar
	Slots []AvailabilitySlot `json:"slots"`
}

// CalendarDetail is the owner's view of a calendar.
type CalendarDetail struct {
	Calendar
	Slots    []AvailabilitySlot `json:"slots"`
	Bookings []BookingView      `json:"bookings"`
}

// PublicCalendar is what students see when opening a calendar by code.
type PublicCalendar struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Code               string             `json:"code"`
	TeacherName        string             `json:"teacher_name"`
	AllowedGrades      []int64            `json:"allowed_grades"`
	MaxStudentsPerSlot int                `json:"max_students_per_slot"`
	Slots              []AvailabilitySlot `json:"slots"`
}

// CreateCalendarRequest payload for creating a calendar with its initial weekly pattern.
type CreateCalendarRequest struct {
	Name               string    `json:"name" validate:"required,min=1,max=100"`
	AllowedGrades      []int     `json:"allowed_grades" validate:"required,min=1,dive,min=7,max=12"`
	MaxStudentsPerSlot int       `json:"max_students_per_slot" validate:"required,min=1,max=50"`
	Slots              []SlotKey `json:"slots" validate:"required,min=1,dive"`
}

// UpdateCalendarRequest payload for partial calendar updates.
type UpdateCalendarRequest struct {
	Name               *string `json:"name" validate:"omitempty,min=1,max=100"`
	AllowedGrades      []int   `json:"allowed_grades" validate:"omitempty,min=1,dive,min=7,max=12"`
	MaxStudentsPerSlot *int    `json:"max_students_per_slot" validate:"omitempty,min=1,max=50"`
	IsActive           *bool   `json:"is_active"`
}

// Int64Grades converts request grades to the array type stored in Postgres.
func Int64Grades(grades []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(grades))
	seen := make(map[int]struct{}, len(grades))
	for _, g := range grades {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, int64(g))
	}
	return out
}
