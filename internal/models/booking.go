package models

import "time"

// Booking is a student's reservation of a slot on a date.
type Booking struct {
	ID                 string    `db:"id" json:"id"`
	AvailabilitySlotID string    `db:"availability_slot_id" json:"availability_slot_id"`
	Date               Date      `db:"date" json:"date"`
	StudentName        string    `db:"student_name" json:"student_name"`
	StudentGrade       int       `db:"student_grade" json:"student_grade"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// BookingView is a booking joined with its slot position, as listed to the owning teacher.
type BookingView struct {
	Booking
	CalendarID   string `db:"calendar_id" json:"calendar_id"`
	DayOfWeek    int    `db:"day_of_week" json:"day_of_week"`
	PeriodNumber int    `db:"period_number" json:"period_number"`
}

// SlotOccupancy aggregates bookings of a slot on a date without student names.
type SlotOccupancy struct {
	AvailabilitySlotID string `db:"availability_slot_id" json:"availability_slot_id"`
	Date               Date   `db:"date" json:"date"`
	StudentGrade       int    `db:"student_grade" json:"student_grade"`
	Count              int    `db:"count" json:"count"`
}

// SubmitBookingRequest is the public booking payload.
type SubmitBookingRequest struct {
	CalendarCode       string `json:"calendar_code" validate:"required,max=32"`
	AvailabilitySlotID string `json:"availability_slot_id" validate:"required,uuid"`
	Date               string `json:"date" validate:"required,datetime=2006-01-02"`
	StudentName        string `json:"student_name" validate:"required,min=1,max=100"`
	StudentGrade       int    `json:"student_grade" validate:"required,min=7,max=12"`
}

// BookingFilter narrows booking listings to an inclusive date range.
type BookingFilter struct {
	StartDate string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=500"`
}

// RosterFilter selects the bookings and file format of a roster export.
type RosterFilter struct {
	StartDate string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Format    string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
