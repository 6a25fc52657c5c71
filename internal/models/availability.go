package models

import "time"

// EditScope selects how far an availability edit reaches.
type EditScope string

const (
	ScopePermanent EditScope = "permanent"
	ScopeWeek      EditScope = "week"
	ScopeMonth     EditScope = "month"
)

// AvailabilitySlot is a recurring weekly (day, period) offering. A slot without a validity
// window is permanent; one with both bounds is temporary.
type AvailabilitySlot struct {
	ID           string          `db:"id" json:"id"`
	CalendarID   string          `db:"calendar_id" json:"calendar_id"`
	DayOfWeek    int             `db:"day_of_week" json:"day_of_week"`
	PeriodNumber int             `db:"period_number" json:"period_number"`
	ValidFrom    *Date           `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil   *Date           `db:"valid_until" json:"valid_until,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	Exceptions   []SlotException `db:"-" json:"exceptions,omitempty"`
}

// IsPermanent reports whether the slot has no validity window.
func (s AvailabilitySlot) IsPermanent() bool {
	return s.ValidFrom == nil && s.ValidUntil == nil
}

// Key returns the weekly position of the slot.
func (s AvailabilitySlot) Key() SlotKey {
	return SlotKey{DayOfWeek: s.DayOfWeek, PeriodNumber: s.PeriodNumber}
}

// SlotException suppresses a permanent slot over an inclusive date window.
type SlotException struct {
	ID        string    `db:"id" json:"id"`
	SlotID    string    `db:"slot_id" json:"slot_id"`
	StartDate Date      `db:"start_date" json:"start_date"`
	EndDate   Date      `db:"end_date" json:"end_date"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// SlotKey is a (day of week, period) position in the weekly grid. Sunday is 0.
type SlotKey struct {
	DayOfWeek    int `json:"day_of_week" validate:"min=0,max=6"`
	PeriodNumber int `json:"period_number" validate:"min=1,max=12"`
}

// EditAvailabilityRequest carries the complete desired weekly pattern for a scope.
type EditAvailabilityRequest struct {
	Scope EditScope `json:"scope" validate:"required,oneof=permanent week month"`
	Slots []SlotKey `json:"slots" validate:"dive"`
}

// EditResult summarises what an availability edit changed.
type EditResult struct {
	Scope          EditScope `json:"scope"`
	RangeStart     *Date     `json:"range_start,omitempty"`
	RangeEnd       *Date     `json:"range_end,omitempty"`
	Added          int       `json:"added"`
	Removed        int       `json:"removed"`
	Hidden         int       `json:"hidden"`
	Restored       int       `json:"restored"`
	TemporaryAdded int       `json:"temporary_added"`
}

// AvailableSlot is one bookable slot instance on a date.
type AvailableSlot struct {
	SlotID       string `json:"slot_id"`
	DayOfWeek    int    `json:"day_of_week"`
	PeriodNumber int    `json:"period_number"`
	Temporary    bool   `json:"temporary"`
	Booked       int    `json:"booked"`
	Capacity     int    `json:"capacity"`
	LockedGrade  *int   `json:"locked_grade,omitempty"`
}

// DayAvailability lists the bookable slots of one date.
type DayAvailability struct {
	Date  Date            `json:"date"`
	Slots []AvailableSlot `json:"slots"`
}
