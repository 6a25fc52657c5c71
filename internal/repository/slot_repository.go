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

const (
	slotColumns      = `id, calendar_id, day_of_week, period_number, valid_from, valid_until, created_at`
	exceptionColumns = `id, slot_id, start_date, end_date, created_at`
)

// SlotRepository reads the availability template of calendars.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository constructs a slot repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// ListByCalendar returns every slot of a calendar with its exceptions, ordered by day and period.
func (r *SlotRepository) ListByCalendar(ctx context.Context, calendarID string) ([]models.AvailabilitySlot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE calendar_id = $1
ORDER BY day_of_week, period_number, valid_from NULLS FIRST`
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, calendarID); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if err := attachExceptions(ctx, r.db, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// ListPermanentByCalendars returns permanent slots grouped by calendar id.
func (r *SlotRepository) ListPermanentByCalendars(ctx context.Context, calendarIDs []string) (map[string][]models.AvailabilitySlot, error) {
	out := make(map[string][]models.AvailabilitySlot, len(calendarIDs))
	if len(calendarIDs) == 0 {
		return out, nil
	}
	query := `SELECT ` + slotColumns + ` FROM availability_slots
WHERE calendar_id = ANY($1) AND valid_from IS NULL AND valid_until IS NULL
ORDER BY day_of_week, period_number`
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, pq.Array(calendarIDs)); err != nil {
		return nil, fmt.Errorf("list permanent slots: %w", err)
	}
	for _, slot := range slots {
		out[slot.CalendarID] = append(out[slot.CalendarID], slot)
	}
	return out, nil
}

func attachExceptions(ctx context.Context, q sqlx.QueryerContext, slots []models.AvailabilitySlot) error {
	if len(slots) == 0 {
		return nil
	}
	ids := make([]string, len(slots))
	index := make(map[string]int, len(slots))
	for i, slot := range slots {
		ids[i] = slot.ID
		index[slot.ID] = i
	}

	query := `SELECT ` + exceptionColumns + ` FROM slot_exceptions WHERE slot_id = ANY($1) ORDER BY start_date`
	var exceptions []models.SlotException
	if err := sqlx.SelectContext(ctx, q, &exceptions, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list slot exceptions: %w", err)
	}
	for _, ex := range exceptions {
		if i, ok := index[ex.SlotID]; ok {
			slots[i].Exceptions = append(slots[i].Exceptions, ex)
		}
	}
	return nil
}

// insertSlots stamps created_at with now on every row.
func insertSlots(ctx context.Context, exec sqlx.ExtContext, slots []models.AvailabilitySlot, now time.Time) error {
	const query = `
INSERT INTO availability_slots (id, calendar_id, day_of_week, period_number, valid_from, valid_until, created_at)
VALUES (:id, :calendar_id, :day_of_week, :period_number, :valid_from, :valid_until, :created_at)`
	for i := range slots {
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		slots[i].CreatedAt = now.UTC()
		if _, err := sqlx.NamedExecContext(ctx, exec, query, slots[i]); err != nil {
			return fmt.Errorf("insert availability slot: %w", err)
		}
	}
	return nil
}
