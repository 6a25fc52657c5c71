package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

// AvailabilityEditor is the transactional view of one calendar's template used while applying an
// availability edit. Every call runs in the same transaction.
type AvailabilityEditor interface {
	// LockCalendar loads the calendar and holds it against concurrent edits.
	LockCalendar(ctx context.Context, calendarID string) (*models.Calendar, error)
	// PermanentSlots loads and locks the calendar's permanent slots.
	PermanentSlots(ctx context.Context, calendarID string) ([]models.AvailabilitySlot, error)
	// HasBookings reports whether the slot has a booking on or after from, and on or before to when given.
	HasBookings(ctx context.Context, slotID string, from models.Date, to *models.Date) (bool, error)
	DeleteSlots(ctx context.Context, ids []string) error
	InsertSlots(ctx context.Context, slots []models.AvailabilitySlot) error
	// ReplaceExceptions drops the slot's exceptions overlapping [start, end] and suppresses it over that range.
	ReplaceExceptions(ctx context.Context, slotID string, start, end models.Date) error
	// ClearExceptions drops the slot's exceptions lying within [start, end] and reports how many went.
	ClearExceptions(ctx context.Context, slotID string, start, end models.Date) (int, error)
	// ReplaceTemporary offers key over [start, end], dropping other temporary slots at key overlapping
	// that range. It reports false when a temporary slot with exactly that window already exists.
	ReplaceTemporary(ctx context.Context, calendarID string, key models.SlotKey, start, end models.Date) (bool, error)
}

// AvailabilityRepository runs availability edits atomically.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Edit runs fn in a single transaction, committing only when fn succeeds. Rows the editor writes
// are stamped with now.
func (r *AvailabilityRepository) Edit(ctx context.Context, now time.Time, fn func(AvailabilityEditor) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin availability edit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&editTx{tx: tx, now: now.UTC()}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit availability edit: %w", err)
	}
	return nil
}

type editTx struct {
	tx  *sqlx.Tx
	now time.Time
}

func (e *editTx) LockCalendar(ctx context.Context, calendarID string) (*models.Calendar, error) {
	var calendar models.Calendar
	if err := e.tx.GetContext(ctx, &calendar, `SELECT `+calendarColumns+` FROM calendars WHERE id = $1 FOR UPDATE`, calendarID); err != nil {
		return nil, err
	}
	return &calendar, nil
}

func (e *editTx) PermanentSlots(ctx context.Context, calendarID string) ([]models.AvailabilitySlot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots
WHERE calendar_id = $1 AND valid_from IS NULL AND valid_until IS NULL
ORDER BY day_of_week, period_number FOR UPDATE`
	var slots []models.AvailabilitySlot
	if err := e.tx.SelectContext(ctx, &slots, query, calendarID); err != nil {
		return nil, fmt.Errorf("lock permanent slots: %w", err)
	}
	return slots, nil
}

func (e *editTx) HasBookings(ctx context.Context, slotID string, from models.Date, to *models.Date) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM bookings WHERE availability_slot_id = $1 AND date >= $2`
	args := []interface{}{slotID, from}
	if to != nil {
		query += ` AND date <= $3`
		args = append(args, *to)
	}
	query += `)`

	var exists bool
	if err := e.tx.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check slot bookings: %w", err)
	}
	return exists, nil
}

func (e *editTx) DeleteSlots(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := e.tx.ExecContext(ctx, `DELETE FROM availability_slots WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete availability slots: %w", err)
	}
	return nil
}

func (e *editTx) InsertSlots(ctx context.Context, slots []models.AvailabilitySlot) error {
	return insertSlots(ctx, e.tx, slots, e.now)
}

func (e *editTx) ReplaceExceptions(ctx context.Context, slotID string, start, end models.Date) error {
	const remove = `DELETE FROM slot_exceptions WHERE slot_id = $1 AND start_date <= $2 AND end_date >= $3`
	if _, err := e.tx.ExecContext(ctx, remove, slotID, end, start); err != nil {
		return fmt.Errorf("delete overlapping exceptions: %w", err)
	}

	exception := models.SlotException{
		ID:        uuid.NewString(),
		SlotID:    slotID,
		StartDate: start,
		EndDate:   end,
		CreatedAt: e.now,
	}
	const insert = `
INSERT INTO slot_exceptions (id, slot_id, start_date, end_date, created_at)
VALUES (:id, :slot_id, :start_date, :end_date, :created_at)`
	if _, err := e.tx.NamedExecContext(ctx, insert, exception); err != nil {
		return fmt.Errorf("insert slot exception: %w", err)
	}
	return nil
}

func (e *editTx) ClearExceptions(ctx context.Context, slotID string, start, end models.Date) (int, error) {
	const query = `DELETE FROM slot_exceptions WHERE slot_id = $1 AND start_date >= $2 AND end_date <= $3`
	result, err := e.tx.ExecContext(ctx, query, slotID, start, end)
	if err != nil {
		return 0, fmt.Errorf("clear slot exceptions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("exception rows affected: %w", err)
	}
	return int(affected), nil
}

func (e *editTx) ReplaceTemporary(ctx context.Context, calendarID string, key models.SlotKey, start, end models.Date) (bool, error) {
	const existing = `
SELECT EXISTS (
  SELECT 1 FROM availability_slots
  WHERE calendar_id = $1 AND day_of_week = $2 AND period_number = $3
    AND valid_from = $4 AND valid_until = $5
)`
	var exists bool
	if err := e.tx.GetContext(ctx, &exists, existing, calendarID, key.DayOfWeek, key.PeriodNumber, start, end); err != nil {
		return false, fmt.Errorf("check temporary slot: %w", err)
	}
	if exists {
		return false, nil
	}

	const remove = `
DELETE FROM availability_slots
WHERE calendar_id = $1 AND day_of_week = $2 AND period_number = $3
  AND valid_from IS NOT NULL AND valid_until IS NOT NULL
  AND valid_from <= $4 AND valid_until >= $5`
	if _, err := e.tx.ExecContext(ctx, remove, calendarID, key.DayOfWeek, key.PeriodNumber, end, start); err != nil {
		return false, fmt.Errorf("delete overlapping temporary slots: %w", err)
	}

	from, until := start, end
	err := insertSlots(ctx, e.tx, []models.AvailabilitySlot{{
		CalendarID:   calendarID,
		DayOfWeek:    key.DayOfWeek,
		PeriodNumber: key.PeriodNumber,
		ValidFrom:    &from,
		ValidUntil:   &until,
	}}, e.now)
	if err != nil {
		return false, err
	}
	return true, nil
}
