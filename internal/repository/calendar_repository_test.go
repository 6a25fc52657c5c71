package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

func TestCalendarRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM calendars WHERE code = $1")).
		WithArgs("AbC12345").
		WillReturnRows(calendarRows().AddRow("cal-1", "teacher-1", "Math", "AbC12345", true, "{7,8}", 3, now, now))

	calendar, err := repo.FindByCode(context.Background(), "AbC12345")
	require.NoError(t, err)
	assert.Equal(t, pq.Int64Array{7, 8}, calendar.AllowedGrades)
	assert.Equal(t, 3, calendar.MaxStudentsPerSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryCreateWithSlots(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teachers")).
		WithArgs("teacher-1", "t@example.com", "Ruth", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO calendars")).
		WithArgs(sqlmock.AnyArg(), "teacher-1", "Math", "AbC12345", true, sqlmock.AnyArg(), 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO availability_slots")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 2, 3, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	teacher := &models.Teacher{ID: "teacher-1", Email: "t@example.com", FullName: "Ruth"}
	calendar := &models.Calendar{Name: "Math", Code: "AbC12345", AllowedGrades: pq.Int64Array{9}, MaxStudentsPerSlot: 2}
	slots := []models.SlotKey{{DayOfWeek: 2, PeriodNumber: 3}, {DayOfWeek: 2, PeriodNumber: 3}}

	require.NoError(t, repo.CreateWithSlots(context.Background(), teacher, calendar, slots))
	assert.NotEmpty(t, calendar.ID)
	assert.True(t, calendar.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryCreateDuplicateCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teachers")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO calendars")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "calendars_code_key"})
	mock.ExpectRollback()

	teacher := &models.Teacher{ID: "teacher-1", Email: "t@example.com"}
	calendar := &models.Calendar{Name: "Math", Code: "taken000", AllowedGrades: pq.Int64Array{9}, MaxStudentsPerSlot: 2}

	err := repo.CreateWithSlots(context.Background(), teacher, calendar, []models.SlotKey{{DayOfWeek: 1, PeriodNumber: 1}})
	assert.ErrorIs(t, err, ErrDuplicateCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE calendars SET name = $1")).
		WithArgs("Physics", false, sqlmock.AnyArg(), 4, sqlmock.AnyArg(), "cal-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	calendar := &models.Calendar{ID: "cal-1", Name: "Physics", IsActive: false, AllowedGrades: pq.Int64Array{11}, MaxStudentsPerSlot: 4}
	require.NoError(t, repo.Update(context.Background(), calendar))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryable(context.Canceled))
}
