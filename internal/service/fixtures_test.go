package service

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

const (
	teacherID   = "teacher-1"
	calendarID  = "cal-1"
	code        = "MaTh2026"
	slotTuesday = "4b0f2c1e-6f0a-4c55-9a57-3f1b8e2d7a01"
	slotFriday  = "4b0f2c1e-6f0a-4c55-9a57-3f1b8e2d7a02"
)

// sundayMorning is 2026-10-18 08:00 UTC.
var sundayMorning = time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustDate(t *testing.T, raw string) models.Date {
	t.Helper()
	d, err := models.ParseDate(raw)
	require.NoError(t, err)
	return d
}

// seededDB holds one active calendar offering Tuesday period 3 and Friday period 1.
func seededDB(maxStudents int) *memoryDB {
	db := newMemoryDB()
	db.state.teachers[teacherID] = models.Teacher{ID: teacherID, FullName: "Ruth Levi"}
	db.addCalendar(models.Calendar{
		ID:                 calendarID,
		TeacherID:          teacherID,
		Name:               "Math",
		Code:               code,
		IsActive:           true,
		AllowedGrades:      pq.Int64Array{9, 10},
		MaxStudentsPerSlot: maxStudents,
	})
	db.addSlot(models.AvailabilitySlot{ID: slotTuesday, CalendarID: calendarID, DayOfWeek: 2, PeriodNumber: 3})
	db.addSlot(models.AvailabilitySlot{ID: slotFriday, CalendarID: calendarID, DayOfWeek: 5, PeriodNumber: 1})
	return db
}

func newTestBookingService(db *memoryDB, now time.Time, cfg BookingConfig) *BookingService {
	cfg.Clock = fixedClock(now)
	return NewBookingService(memBookings{db}, db, nil, nil, validator.New(), zap.NewNop(), cfg)
}

func newTestAvailabilityService(db *memoryDB, now time.Time) *AvailabilityService {
	return NewAvailabilityService(db, db, memSlots{db}, memBookings{db}, nil, nil, validator.New(), zap.NewNop(), AvailabilityConfig{Clock: fixedClock(now)})
}

func bookingRequest(slotID, date, name string, grade int) models.SubmitBookingRequest {
	return models.SubmitBookingRequest{
		CalendarCode:       code,
		AvailabilitySlotID: slotID,
		Date:               date,
		StudentName:        name,
		StudentGrade:       grade,
	}
}
