package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-calendar-api/internal/availability"
	"github.com/noah-isme/lesson-calendar-api/internal/models"
	"github.com/noah-isme/lesson-calendar-api/internal/repository"
	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
)

type availabilityStore interface {
	Edit(ctx context.Context, now time.Time, fn func(repository.AvailabilityEditor) error) error
}

type occupancyReader interface {
	Occupancy(ctx context.Context, calendarID string, from, to models.Date) ([]models.SlotOccupancy, error)
}

// AvailabilityConfig tunes the availability service.
type AvailabilityConfig struct {
	MaxAttempts int
	CacheTTL    time.Duration
	Clock       func() time.Time
}

// AvailabilityService edits a calendar's weekly pattern and projects it into bookable dates.
type AvailabilityService struct {
	store     availabilityStore
	calendars calendarReader
	slots     slotReader
	occupancy occupancyReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AvailabilityConfig
}

// NewAvailabilityService constructs the availability service.
func NewAvailabilityService(store availabilityStore, calendars calendarReader, slots slotReader, occupancy occupancyReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AvailabilityConfig) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &AvailabilityService{
		store:     store,
		calendars: calendars,
		slots:     slots,
		occupancy: occupancy,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// ApplyEdit makes the calendar offer exactly req.Slots, permanently or over the current week or
// month. The edit is atomic: any conflict leaves the calendar untouched.
func (s *AvailabilityService) ApplyEdit(ctx context.Context, teacherID, calendarID string, req models.EditAvailabilityRequest) (*models.EditResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	now := s.cfg.Clock().UTC()
	var (
		result *models.EditResult
		code   string
	)
	_, err := withRetry(ctx, s.logger, "availability edit", s.cfg.MaxAttempts, func() error {
		return s.store.Edit(ctx, now, func(editor repository.AvailabilityEditor) error {
			var editErr error
			result, code, editErr = applyEdit(ctx, editor, teacherID, calendarID, req, now)
			return editErr
		})
	})
	if s.metrics != nil {
		s.metrics.RecordAvailabilityEdit(string(req.Scope), editOutcome(err))
	}
	if err != nil {
		s.logger.Info("availability edit rejected",
			zap.String("calendar_id", calendarID),
			zap.String("scope", string(req.Scope)),
			zap.Error(err),
		)
		return nil, internalError(err, "failed to update availability")
	}

	s.logger.Info("availability edited",
		zap.String("calendar_id", calendarID),
		zap.String("scope", string(req.Scope)),
		zap.Int("added", result.Added),
		zap.Int("removed", result.Removed),
		zap.Int("hidden", result.Hidden),
		zap.Int("temporary_added", result.TemporaryAdded),
	)
	_ = s.cache.InvalidateCalendar(ctx, code)
	return result, nil
}

// applyEdit reconciles the calendar with the desired set inside the editor's transaction and
// returns the result with the calendar's share code.
func applyEdit(ctx context.Context, editor repository.AvailabilityEditor, teacherID, calendarID string, req models.EditAvailabilityRequest, now time.Time) (*models.EditResult, string, error) {
	calendar, err := editor.LockCalendar(ctx, calendarID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, "", err
	}
	if calendar.TeacherID != teacherID {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
	}

	current, err := editor.PermanentSlots(ctx, calendarID)
	if err != nil {
		return nil, "", err
	}
	plan := availability.Diff(current, req.Slots)
	result := &models.EditResult{Scope: req.Scope}

	if req.Scope == models.ScopePermanent {
		today := availability.Today(now)
		if err := ensureNoBookings(ctx, editor, plan.Drop, today, nil); err != nil {
			return nil, "", err
		}
		ids := make([]string, 0, len(plan.Drop))
		for _, slot := range plan.Drop {
			ids = append(ids, slot.ID)
		}
		if err := editor.DeleteSlots(ctx, ids); err != nil {
			return nil, "", err
		}
		adds := make([]models.AvailabilitySlot, 0, len(plan.Add))
		for _, key := range plan.Add {
			adds = append(adds, models.AvailabilitySlot{CalendarID: calendarID, DayOfWeek: key.DayOfWeek, PeriodNumber: key.PeriodNumber})
		}
		if err := editor.InsertSlots(ctx, adds); err != nil {
			return nil, "", err
		}
		result.Added, result.Removed = len(adds), len(ids)
		return result, calendar.Code, nil
	}

	start, end, err := availability.ScopeRange(req.Scope, now)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability scope")
	}
	result.RangeStart, result.RangeEnd = &start, &end

	if err := ensureNoBookings(ctx, editor, plan.Drop, start, &end); err != nil {
		return nil, "", err
	}
	for _, slot := range plan.Drop {
		if err := editor.ReplaceExceptions(ctx, slot.ID, start, end); err != nil {
			return nil, "", err
		}
		result.Hidden++
	}
	for _, slot := range plan.Keep {
		cleared, err := editor.ClearExceptions(ctx, slot.ID, start, end)
		if err != nil {
			return nil, "", err
		}
		if cleared > 0 {
			result.Restored++
		}
	}
	for _, key := range plan.Add {
		created, err := editor.ReplaceTemporary(ctx, calendarID, key, start, end)
		if err != nil {
			return nil, "", err
		}
		if created {
			result.TemporaryAdded++
		}
	}
	return result, calendar.Code, nil
}

// ensureNoBookings fails with SlotHasFutureBookings for the first slot booked within [from, to].
func ensureNoBookings(ctx context.Context, editor repository.AvailabilityEditor, slots []models.AvailabilitySlot, from models.Date, to *models.Date) error {
	for _, slot := range slots {
		booked, err := editor.HasBookings(ctx, slot.ID, from, to)
		if err != nil {
			return err
		}
		if booked {
			return appErrors.WithDetails(appErrors.ErrSlotHasFutureBookings, appErrors.SlotDetails{
				DayOfWeek:    slot.DayOfWeek,
				PeriodNumber: slot.PeriodNumber,
			})
		}
	}
	return nil
}

func editOutcome(err error) string {
	if err == nil {
		return "applied"
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}

// PublicAvailability projects an active calendar over [from, to] with the occupancy of each slot
// instance. Empty bounds default to two weeks from today.
func (s *AvailabilityService) PublicAvailability(ctx context.Context, code, fromRaw, toRaw string) ([]models.DayAvailability, error) {
	from, to, err := boundedRange(fromRaw, toRaw, s.cfg.Clock())
	if err != nil {
		return nil, err
	}

	key := availabilityKey(code, from, to)
	var cached []models.DayAvailability
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	calendar, err := activeCalendar(ctx, s.calendars, code)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByCalendar(ctx, calendar.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar slots")
	}
	occupancy, err := s.occupancy.Occupancy(ctx, calendar.ID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occupancy")
	}

	type instance struct {
		slotID string
		date   string
	}
	booked := make(map[instance]models.SlotOccupancy, len(occupancy))
	for _, o := range occupancy {
		booked[instance{o.AvailabilitySlotID, o.Date.String()}] = o
	}

	days := availability.ProjectRange(slots, from, to)
	out := make([]models.DayAvailability, 0, len(days))
	for _, day := range days {
		entry := models.DayAvailability{Date: day.Date, Slots: make([]models.AvailableSlot, 0, len(day.Slots))}
		for _, p := range day.Slots {
			slot := models.AvailableSlot{
				SlotID:       p.Slot.ID,
				DayOfWeek:    p.Slot.DayOfWeek,
				PeriodNumber: p.Slot.PeriodNumber,
				Temporary:    p.Temporary,
				Capacity:     calendar.MaxStudentsPerSlot,
			}
			if o, ok := booked[instance{p.Slot.ID, day.Date.String()}]; ok {
				grade := o.StudentGrade
				slot.Booked = o.Count
				slot.LockedGrade = &grade
			}
			entry.Slots = append(entry.Slots, slot)
		}
		out = append(out, entry)
	}

	_ = s.cache.Set(ctx, key, out, s.cfg.CacheTTL)
	return out, nil
}
