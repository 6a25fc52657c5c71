package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
)

const bookingColumns = `id, availability_slot_id, date, student_name, student_grade, created_at`

// AdmissionSnapshot is the state an admission decision is made against. Calendar and Slot are nil
// when the slot does not exist. Siblings are the calendar's other slots at the same (day, period).
type AdmissionSnapshot struct {
	Calendar *models.Calendar
	Slot     *models.AvailabilitySlot
	Siblings []models.AvailabilitySlot
	Bookings []models.Booking
}

// AdmissionDecision inspects a snapshot and returns the booking to insert, or a rejection.
type AdmissionDecision func(AdmissionSnapshot) (*models.Booking, error)

// BookingQuery filters booking listings of one calendar.
type BookingQuery struct {
	CalendarID string
	From       *models.Date
	To         *models.Date
	Limit      int
	Offset     int
}

// BookingRepository persists bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Admit runs decide against the current bookings of (slotID, date) and inserts the booking it
// returns. Concurrent admissions for the same calendar position and date are serialized by a
// transaction-scoped advisory lock, and the slot row is share-locked so availability edits cannot
// delete it meanwhile. The decision stamps CreatedAt; a zero value falls back to the wall clock.
func (r *BookingRepository) Admit(ctx context.Context, slotID string, date models.Date, decide AdmissionDecision) (booking *models.Booking, err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin admission: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	snapshot, err := r.loadSnapshot(ctx, tx, slotID, date)
	if err != nil {
		return nil, err
	}

	booking, err = decide(snapshot)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		err = errors.New("admission decision returned no booking")
		return nil, err
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	const insert = `
INSERT INTO bookings (id, availability_slot_id, date, student_name, student_grade, created_at)
VALUES (:id, :availability_slot_id, :date, :student_name, :student_grade, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, booking); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit admission: %w", err)
	}
	return booking, nil
}

func (r *BookingRepository) loadSnapshot(ctx context.Context, tx *sqlx.Tx, slotID string, date models.Date) (AdmissionSnapshot, error) {
	var snapshot AdmissionSnapshot

	var slot models.AvailabilitySlot
	err := tx.GetContext(ctx, &slot, `SELECT `+slotColumns+` FROM availability_slots WHERE id = $1 FOR SHARE`, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot, nil
	}
	if err != nil {
		return snapshot, fmt.Errorf("lock slot: %w", err)
	}

	var calendar models.Calendar
	if err := tx.GetContext(ctx, &calendar, `SELECT `+calendarColumns+` FROM calendars WHERE id = $1`, slot.CalendarID); err != nil {
		return snapshot, fmt.Errorf("load slot calendar: %w", err)
	}

	var siblings []models.AvailabilitySlot
	siblingQuery := `SELECT ` + slotColumns + ` FROM availability_slots
WHERE calendar_id = $1 AND day_of_week = $2 AND period_number = $3 AND id <> $4`
	if err := tx.SelectContext(ctx, &siblings, siblingQuery, slot.CalendarID, slot.DayOfWeek, slot.PeriodNumber, slot.ID); err != nil {
		return snapshot, fmt.Errorf("list sibling slots: %w", err)
	}

	slots := append([]models.AvailabilitySlot{slot}, siblings...)
	if err := attachExceptions(ctx, tx, slots); err != nil {
		return snapshot, err
	}

	lockKey := fmt.Sprintf("%s:%d:%d:%s", slot.CalendarID, slot.DayOfWeek, slot.PeriodNumber, date.String())
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return snapshot, fmt.Errorf("lock slot instance: %w", err)
	}

	var bookings []models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE availability_slot_id = $1 AND date = $2 ORDER BY created_at`
	if err := tx.SelectContext(ctx, &bookings, query, slotID, date); err != nil {
		return snapshot, fmt.Errorf("list slot bookings: %w", err)
	}

	snapshot.Calendar = &calendar
	snapshot.Slot = &slots[0]
	snapshot.Siblings = slots[1:]
	snapshot.Bookings = bookings
	return snapshot, nil
}

// ListByCalendar returns bookings of a calendar ordered by date and period, with the total count
// ignoring limit and offset.
func (r *BookingRepository) ListByCalendar(ctx context.Context, q BookingQuery) ([]models.BookingView, int, error) {
	var (
		where strings.Builder
		args  = []interface{}{q.CalendarID}
	)
	where.WriteString(`s.calendar_id = $1`)
	if q.From != nil {
		args = append(args, *q.From)
		fmt.Fprintf(&where, ` AND b.date >= $%d`, len(args))
	}
	if q.To != nil {
		args = append(args, *q.To)
		fmt.Fprintf(&where, ` AND b.date <= $%d`, len(args))
	}

	const from = ` FROM bookings b JOIN availability_slots s ON s.id = b.availability_slot_id WHERE `

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+from+where.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	query := `SELECT b.id, b.availability_slot_id, b.date, b.student_name, b.student_grade, b.created_at,
    s.calendar_id, s.day_of_week, s.period_number` + from + where.String() +
		` ORDER BY b.date, s.period_number, b.created_at`
	if q.Limit > 0 {
		args = append(args, q.Limit, q.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	var bookings []models.BookingView
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, total, nil
}

// Occupancy aggregates bookings of a calendar per slot instance within [from, to].
func (r *BookingRepository) Occupancy(ctx context.Context, calendarID string, from, to models.Date) ([]models.SlotOccupancy, error) {
	const query = `
SELECT b.availability_slot_id, b.date, MIN(b.student_grade) AS student_grade, COUNT(*) AS count
FROM bookings b JOIN availability_slots s ON s.id = b.availability_slot_id
WHERE s.calendar_id = $1 AND b.date BETWEEN $2 AND $3
GROUP BY b.availability_slot_id, b.date
ORDER BY b.date`
	var rows []models.SlotOccupancy
	if err := r.db.SelectContext(ctx, &rows, query, calendarID, from, to); err != nil {
		return nil, fmt.Errorf("booking occupancy: %w", err)
	}
	return rows, nil
}

// FindOwner returns the teacher and calendar a booking belongs to.
func (r *BookingRepository) FindOwner(ctx context.Context, bookingID string) (teacherID, calendarID string, err error) {
	const query = `
SELECT c.teacher_id, c.id
FROM bookings b
JOIN availability_slots s ON s.id = b.availability_slot_id
JOIN calendars c ON c.id = s.calendar_id
WHERE b.id = $1`
	row := r.db.QueryRowxContext(ctx, query, bookingID)
	if err = row.Scan(&teacherID, &calendarID); err != nil {
		return "", "", err
	}
	return teacherID, calendarID, nil
}

// Delete removes a booking.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("booking rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
