package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

const calendarColumns = `id, teacher_id, name, code, is_active, allowed_grades, max_students_per_slot, created_at, updated_at`

// CalendarRepository persists calendars.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// FindByID loads a calendar by id.
func (r *CalendarRepository) FindByID(ctx context.Context, id string) (*models.Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE id = $1`
	var calendar models.Calendar
	if err := r.db.GetContext(ctx, &calendar, query, id); err != nil {
		return nil, err
	}
	return &calendar, nil
}

// FindByCode loads a calendar by its share code.
func (r *CalendarRepository) FindByCode(ctx context.Context, code string) (*models.Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE code = $1`
	var calendar models.Calendar
	if err := r.db.GetContext(ctx, &calendar, query, code); err != nil {
		return nil, err
	}
	return &calendar, nil
}

// ListByTeacher returns the teacher's calendars, newest first.
func (r *CalendarRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE teacher_id = $1 ORDER BY created_at DESC`
	var calendars []models.Calendar
	if err := r.db.SelectContext(ctx, &calendars, query, teacherID); err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return calendars, nil
}

// CreateWithSlots upserts the owning teacher, then inserts the calendar and its initial permanent
// slots in one transaction. A taken share code yields ErrDuplicateCode.
func (r *CalendarRepository) CreateWithSlots(ctx context.Context, teacher *models.Teacher, calendar *models.Calendar, slots []models.SlotKey) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create calendar: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = upsertTeacher(ctx, tx, teacher); err != nil {
		return err
	}

	now := time.Now().UTC()
	if calendar.ID == "" {
		calendar.ID = uuid.NewString()
	}
	calendar.TeacherID = teacher.ID
	calendar.IsActive = true
	calendar.CreatedAt = now
	calendar.UpdatedAt = now

	const insertCalendar = `
INSERT INTO calendars (id, teacher_id, name, code, is_active, allowed_grades, max_students_per_slot, created_at, updated_at)
VALUES (:id, :teacher_id, :name, :code, :is_active, :allowed_grades, :max_students_per_slot, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertCalendar, calendar); err != nil {
		if isUniqueViolation(err, "calendars_code_key") {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert calendar: %w", err)
	}

	rows := make([]models.AvailabilitySlot, 0, len(slots))
	seen := make(map[models.SlotKey]struct{}, len(slots))
	for _, key := range slots {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, models.AvailabilitySlot{CalendarID: calendar.ID, DayOfWeek: key.DayOfWeek, PeriodNumber: key.PeriodNumber})
	}
	if err = insertSlots(ctx, tx, rows, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create calendar: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a calendar.
func (r *CalendarRepository) Update(ctx context.Context, calendar *models.Calendar) error {
	calendar.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE calendars SET name = :name, is_active = :is_active, allowed_grades = :allowed_grades,
    max_students_per_slot = :max_students_per_slot, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, calendar)
	if err != nil {
		return fmt.Errorf("update calendar: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("calendar rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a calendar; slots, exceptions and bookings cascade.
func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM calendars WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("calendar rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TeacherName returns the display name of the calendar owner.
func (r *CalendarRepository) TeacherName(ctx context.Context, teacherID string) (string, error) {
	var name string
	if err := r.db.GetContext(ctx, &name, `SELECT full_name FROM teachers WHERE id = $1`, teacherID); err != nil {
		return "", err
	}
	return strings.TrimSpace(name), nil
}
