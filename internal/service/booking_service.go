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

const (
	defaultLeadTime     = 24 * time.Hour
	defaultBookingPage  = 50
	defaultWindowLength = 14
)

type bookingStore interface {
	Admit(ctx context.Context, slotID string, date models.Date, decide repository.AdmissionDecision) (*models.Booking, error)
	ListByCalendar(ctx context.Context, q repository.BookingQuery) ([]models.BookingView, int, error)
	Occupancy(ctx context.Context, calendarID string, from, to models.Date) ([]models.SlotOccupancy, error)
	FindOwner(ctx context.Context, bookingID string) (teacherID, calendarID string, err error)
	Delete(ctx context.Context, id string) error
}

type calendarReader interface {
	FindByID(ctx context.Context, id string) (*models.Calendar, error)
	FindByCode(ctx context.Context, code string) (*models.Calendar, error)
}

// BookingConfig tunes admission.
type BookingConfig struct {
	LeadTime    time.Duration
	MaxAttempts int
	Clock       func() time.Time
}

// BookingService admits public bookings and lists them for calendar owners.
type BookingService struct {
	store     bookingStore
	calendars calendarReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       BookingConfig
}

// NewBookingService constructs the booking service.
func NewBookingService(store bookingStore, calendars calendarReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg BookingConfig) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = defaultLeadTime
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &BookingService{
		store:     store,
		calendars: calendars,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Submit admits a booking for a slot instance or rejects it with a typed error.
func (s *BookingService) Submit(ctx context.Context, req models.SubmitBookingRequest) (*models.Booking, error) {
	req.CalendarCode = strings.TrimSpace(req.CalendarCode)
	req.StudentName = strings.TrimSpace(req.StudentName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking date")
	}

	now := s.cfg.Clock().UTC()
	decide := func(snapshot repository.AdmissionSnapshot) (*models.Booking, error) {
		return decideAdmission(snapshot, req, date, now, s.cfg.LeadTime)
	}

	var booking *models.Booking
	attempts, err := withRetry(ctx, s.logger, "booking admission", s.cfg.MaxAttempts, func() error {
		var admitErr error
		booking, admitErr = s.store.Admit(ctx, req.AvailabilitySlotID, date, decide)
		return admitErr
	})
	if s.metrics != nil {
		s.metrics.RecordAdmission(admissionOutcome(err), attempts)
	}
	if err != nil {
		s.logger.Info("booking rejected",
			zap.String("calendar_code", req.CalendarCode),
			zap.String("slot_id", req.AvailabilitySlotID),
			zap.String("date", req.Date),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return nil, internalError(err, "failed to submit booking")
	}

	s.logger.Info("booking admitted",
		zap.String("booking_id", booking.ID),
		zap.String("slot_id", booking.AvailabilitySlotID),
		zap.String("date", booking.Date.String()),
		zap.Int("grade", booking.StudentGrade),
	)
	_ = s.cache.InvalidateCalendar(ctx, req.CalendarCode)
	return booking, nil
}

// decideAdmission applies the admission rules in order against a locked snapshot of the slot instance.
// A slot hidden by a higher-ranked sibling at the same position is not available on that date.
func decideAdmission(snapshot repository.AdmissionSnapshot, req models.SubmitBookingRequest, date models.Date, now time.Time, lead time.Duration) (*models.Booking, error) {
	calendar, slot := snapshot.Calendar, snapshot.Slot
	if slot == nil || calendar == nil || calendar.Code != req.CalendarCode || !calendar.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar or slot not found")
	}
	if !availability.Offered(*slot, snapshot.Siblings, date) {
		return nil, appErrors.ErrSlotNotAvailableOnDate
	}
	if int(date.Weekday()) != slot.DayOfWeek {
		return nil, appErrors.ErrWeekdayMismatch
	}
	if !calendar.AllowsGrade(req.StudentGrade) {
		return nil, appErrors.WithDetails(appErrors.ErrGradeNotAllowed, appErrors.GradeDetails{Grade: req.StudentGrade})
	}
	if date.Before(availability.Today(now).Time) {
		return nil, appErrors.ErrDateInPast
	}
	if !availability.MeetsLeadTime(date, now, lead) {
		return nil, appErrors.ErrInsufficientLeadTime
	}

	for _, existing := range snapshot.Bookings {
		if existing.StudentGrade != req.StudentGrade {
			return nil, appErrors.WithDetails(appErrors.ErrGradeExclusiveConflict, appErrors.GradeDetails{Grade: snapshot.Bookings[0].StudentGrade})
		}
	}
	if len(snapshot.Bookings) >= calendar.MaxStudentsPerSlot {
		return nil, appErrors.ErrSlotFull
	}
	for _, existing := range snapshot.Bookings {
		if strings.EqualFold(strings.TrimSpace(existing.StudentName), req.StudentName) {
			return nil, appErrors.ErrDuplicateBooking
		}
	}

	return &models.Booking{
		AvailabilitySlotID: slot.ID,
		Date:               date,
		StudentName:        req.StudentName,
		StudentGrade:       req.StudentGrade,
		CreatedAt:          now.UTC(),
	}, nil
}

func admissionOutcome(err error) string {
	if err == nil {
		return "admitted"
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}

// ListForTeacher returns a page of a calendar's bookings with student names.
func (s *BookingService) ListForTeacher(ctx context.Context, teacherID, calendarID string, filter models.BookingFilter) ([]models.BookingView, *models.Pagination, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking filter")
	}
	if _, err := ownedCalendar(ctx, s.calendars, teacherID, calendarID); err != nil {
		return nil, nil, err
	}

	from, to, err := optionalRange(filter.StartDate, filter.EndDate)
	if err != nil {
		return nil, nil, err
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = defaultBookingPage
	}

	bookings, total, err := s.store.ListByCalendar(ctx, repository.BookingQuery{
		CalendarID: calendarID,
		From:       from,
		To:         to,
		Limit:      size,
		Offset:     (page - 1) * size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// PublicOccupancy reports how many students of which grade booked each slot instance, without names.
func (s *BookingService) PublicOccupancy(ctx context.Context, code string, filter models.BookingFilter) ([]models.SlotOccupancy, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking filter")
	}
	calendar, err := activeCalendar(ctx, s.calendars, code)
	if err != nil {
		return nil, err
	}
	from, to, err := boundedRange(filter.StartDate, filter.EndDate, s.cfg.Clock())
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Occupancy(ctx, calendar.ID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occupancy")
	}
	if rows == nil {
		rows = []models.SlotOccupancy{}
	}
	return rows, nil
}

// Delete cancels a booking on one of the teacher's calendars.
func (s *BookingService) Delete(ctx context.Context, teacherID, bookingID string) error {
	owner, calendarID, err := s.store.FindOwner(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if owner != teacherID {
		return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	if err := s.store.Delete(ctx, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete booking")
	}

	s.logger.Info("booking deleted", zap.String("booking_id", bookingID), zap.String("calendar_id", calendarID))
	if calendar, err := s.calendars.FindByID(ctx, calendarID); err == nil {
		_ = s.cache.InvalidateCalendar(ctx, calendar.Code)
	}
	return nil
}
