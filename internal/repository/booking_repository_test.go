package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func slotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "calendar_id", "day_of_week", "period_number", "valid_from", "valid_until", "created_at"})
}

func calendarRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "teacher_id", "name", "code", "is_active", "allowed_grades", "max_students_per_slot", "created_at", "updated_at"})
}

func expectAdmissionSnapshot(mock sqlmock.Sqlmock, siblings, existing *sqlmock.Rows) {
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM availability_slots WHERE id = $1 FOR SHARE")).
		WithArgs("slot-1").
		WillReturnRows(slotRows().AddRow("slot-1", "cal-1", 2, 3, nil, nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM calendars WHERE id = $1")).
		WithArgs("cal-1").
		WillReturnRows(calendarRows().AddRow("cal-1", "teacher-1", "Math", "AbC12345", true, "{9,10}", 2, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE calendar_id = $1 AND day_of_week = $2 AND period_number = $3 AND id <> $4")).
		WithArgs("cal-1", 2, 3, "slot-1").
		WillReturnRows(siblings)
	mock.ExpectQuery(regexp.QuoteMeta("FROM slot_exceptions WHERE slot_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slot_id", "start_date", "end_date", "created_at"}).
			AddRow("ex-1", "slot-1", time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC), time.Date(2026, 12, 26, 0, 0, 0, 0, time.UTC), now))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("cal-1:2:3:2026-10-20").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE availability_slot_id = $1 AND date = $2")).
		WithArgs("slot-1", "2026-10-20").
		WillReturnRows(existing)
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "availability_slot_id", "date", "student_name", "student_grade", "created_at"})
}

func TestBookingRepositoryAdmitInsertsDecidedBooking(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	date, _ := models.ParseDate("2026-10-20")

	decidedAt := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	expectAdmissionSnapshot(mock, slotRows(), bookingRows().AddRow("b-0", "slot-1", date.Time, "Noa", 9, time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(sqlmock.AnyArg(), "slot-1", "2026-10-20", "Dana", 9, decidedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var seen AdmissionSnapshot
	booking, err := repo.Admit(context.Background(), "slot-1", date, func(s AdmissionSnapshot) (*models.Booking, error) {
		seen = s
		return &models.Booking{AvailabilitySlotID: "slot-1", Date: date, StudentName: "Dana", StudentGrade: 9, CreatedAt: decidedAt}, nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, decidedAt, booking.CreatedAt)
	assert.Empty(t, seen.Siblings)
	require.NotNil(t, seen.Slot)
	assert.Len(t, seen.Slot.Exceptions, 1)
	assert.Equal(t, "AbC12345", seen.Calendar.Code)
	assert.True(t, seen.Calendar.AllowsGrade(10))
	require.Len(t, seen.Bookings, 1)
	assert.Equal(t, "Noa", seen.Bookings[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryAdmitRollsBackOnRejection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	date, _ := models.ParseDate("2026-10-20")

	expectAdmissionSnapshot(mock, slotRows(), bookingRows())
	mock.ExpectRollback()

	rejection := errors.New("full")
	_, err := repo.Admit(context.Background(), "slot-1", date, func(AdmissionSnapshot) (*models.Booking, error) {
		return nil, rejection
	})
	assert.ErrorIs(t, err, rejection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryAdmitLoadsSiblingsAtSamePosition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	date, _ := models.ParseDate("2026-10-20")
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)

	expectAdmissionSnapshot(mock, slotRows().AddRow("slot-2", "cal-1", 2, 3, from, until, time.Now()), bookingRows())
	mock.ExpectRollback()

	rejection := errors.New("hidden")
	_, err := repo.Admit(context.Background(), "slot-1", date, func(s AdmissionSnapshot) (*models.Booking, error) {
		require.NotNil(t, s.Slot)
		assert.Equal(t, "slot-1", s.Slot.ID)
		assert.Len(t, s.Slot.Exceptions, 1)
		require.Len(t, s.Siblings, 1)
		assert.Equal(t, "slot-2", s.Siblings[0].ID)
		assert.False(t, s.Siblings[0].IsPermanent())
		return nil, rejection
	})
	assert.ErrorIs(t, err, rejection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryAdmitMissingSlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	date, _ := models.ParseDate("2026-10-20")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM availability_slots WHERE id = $1 FOR SHARE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	rejection := errors.New("not found")
	_, err := repo.Admit(context.Background(), "missing", date, func(s AdmissionSnapshot) (*models.Booking, error) {
		assert.Nil(t, s.Slot)
		assert.Nil(t, s.Calendar)
		return nil, rejection
	})
	assert.ErrorIs(t, err, rejection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListByCalendar(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)
	from, _ := models.ParseDate("2026-10-01")
	to, _ := models.ParseDate("2026-10-31")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings b JOIN availability_slots s ON s.id = b.availability_slot_id WHERE s.calendar_id = $1 AND b.date >= $2 AND b.date <= $3")).
		WithArgs("cal-1", "2026-10-01", "2026-10-31").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY b.date, s.period_number, b.created_at LIMIT $4 OFFSET $5")).
		WithArgs("cal-1", "2026-10-01", "2026-10-31", 2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "availability_slot_id", "date", "student_name", "student_grade", "created_at", "calendar_id", "day_of_week", "period_number"}).
			AddRow("b-1", "slot-1", time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), "Dana", 9, time.Now(), "cal-1", 2, 3).
			AddRow("b-2", "slot-1", time.Date(2026, 10, 27, 0, 0, 0, 0, time.UTC), "Omer", 9, time.Now(), "cal-1", 2, 3))

	list, total, err := repo.ListByCalendar(context.Background(), BookingQuery{CalendarID: "cal-1", From: &from, To: &to, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "2026-10-27", list[1].Date.String())
	assert.Equal(t, 3, list[0].PeriodNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryFindOwner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.teacher_id, c.id")).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id", "id"}).AddRow("teacher-1", "cal-1"))

	teacherID, calendarID, err := repo.FindOwner(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", teacherID)
	assert.Equal(t, "cal-1", calendarID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bookings WHERE id = $1")).
		WithArgs("b-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "b-1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
