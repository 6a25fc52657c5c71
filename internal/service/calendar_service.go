package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-calendar-api/internal/availability"
	"github.com/noah-isme/lesson-calendar-api/internal/models"
	"github.com/noah-isme/lesson-calendar-api/internal/repository"
	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
)

const (
	codeAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeLength         = 8
	maxCodeAttempts    = 5
	detailBookingLimit = 500
)

type calendarStore interface {
	calendarReader
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Calendar, error)
	CreateWithSlots(ctx context.Context, teacher *models.Teacher, calendar *models.Calendar, slots []models.SlotKey) error
	Update(ctx context.Context, calendar *models.Calendar) error
	Delete(ctx context.Context, id string) error
	TeacherName(ctx context.Context, teacherID string) (string, error)
}

type slotReader interface {
	ListByCalendar(ctx context.Context, calendarID string) ([]models.AvailabilitySlot, error)
	ListPermanentByCalendars(ctx context.Context, calendarIDs []string) (map[string][]models.AvailabilitySlot, error)
}

type bookingLister interface {
	ListByCalendar(ctx context.Context, q repository.BookingQuery) ([]models.BookingView, int, error)
}

// CalendarService manages teacher calendars and their public view.
type CalendarService struct {
	store     calendarStore
	slots     slotReader
	bookings  bookingLister
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	clock     func() time.Time
	newCode   func() (string, error)
}

// NewCalendarService constructs the calendar service.
func NewCalendarService(store calendarStore, slots slotReader, bookings bookingLister, cache *CacheService, validate *validator.Validate, logger *zap.Logger, clock func() time.Time) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &CalendarService{
		store:     store,
		slots:     slots,
		bookings:  bookings,
		cache:     cache,
		validator: validate,
		logger:    logger,
		clock:     clock,
		newCode:   generateCode,
	}
}

// generateCode returns a random base62 share code.
func generateCode() (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Create stores a calendar with its initial permanent slots for the teacher.
func (s *CalendarService) Create(ctx context.Context, teacher models.Teacher, req models.CreateCalendarRequest) (*models.CalendarSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}

	calendar := &models.Calendar{
		Name:               req.Name,
		AllowedGrades:      models.Int64Grades(req.AllowedGrades),
		MaxStudentsPerSlot: req.MaxStudentsPerSlot,
	}
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if calendar.Code, err = s.newCode(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate calendar code")
		}
		err = s.store.CreateWithSlots(ctx, &teacher, calendar, req.Slots)
		if !errors.Is(err, repository.ErrDuplicateCode) {
			break
		}
		s.logger.Warn("calendar code collision", zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create calendar")
	}

	slots, err := s.slots.ListByCalendar(ctx, calendar.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar slots")
	}
	s.logger.Info("calendar created", zap.String("calendar_id", calendar.ID), zap.String("teacher_id", teacher.ID), zap.Int("slots", len(slots)))
	return &models.CalendarSummary{Calendar: *calendar, Slots: slots}, nil
}

// List returns the teacher's calendars with their permanent weekly pattern.
func (s *CalendarService) List(ctx context.Context, teacherID string) ([]models.CalendarSummary, error) {
	calendars, err := s.store.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendars")
	}
	ids := make([]string, 0, len(calendars))
	for _, c := range calendars {
		ids = append(ids, c.ID)
	}
	slots, err := s.slots.ListPermanentByCalendars(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendar slots")
	}

	out := make([]models.CalendarSummary, 0, len(calendars))
	for _, c := range calendars {
		summary := models.CalendarSummary{Calendar: c, Slots: slots[c.ID]}
		if summary.Slots == nil {
			summary.Slots = []models.AvailabilitySlot{}
		}
		out = append(out, summary)
	}
	return out, nil
}

// Get returns a calendar with all slots and the bookings from today on.
func (s *CalendarService) Get(ctx context.Context, teacherID, id string) (*models.CalendarDetail, error) {
	calendar, err := ownedCalendar(ctx, s.store, teacherID, id)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByCalendar(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar slots")
	}
	today := availability.Today(s.clock())
	bookings, _, err := s.bookings.ListByCalendar(ctx, repository.BookingQuery{CalendarID: id, From: &today, Limit: detailBookingLimit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar bookings")
	}
	if bookings == nil {
		bookings = []models.BookingView{}
	}
	return &models.CalendarDetail{Calendar: *calendar, Slots: slots, Bookings: bookings}, nil
}

// Update applies a partial update to one of the teacher's calendars.
func (s *CalendarService) Update(ctx context.Context, teacherID, id string, req models.UpdateCalendarRequest) (*models.Calendar, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}
	calendar, err := ownedCalendar(ctx, s.store, teacherID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		calendar.Name = *req.Name
	}
	if len(req.AllowedGrades) > 0 {
		calendar.AllowedGrades = models.Int64Grades(req.AllowedGrades)
	}
	if req.MaxStudentsPerSlot != nil {
		calendar.MaxStudentsPerSlot = *req.MaxStudentsPerSlot
	}
	if req.IsActive != nil {
		calendar.IsActive = *req.IsActive
	}

	if err := s.store.Update(ctx, calendar); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update calendar")
	}
	_ = s.cache.InvalidateCalendar(ctx, calendar.Code)
	return calendar, nil
}

// Delete removes a calendar with its slots and bookings.
func (s *CalendarService) Delete(ctx context.Context, teacherID, id string) error {
	calendar, err := ownedCalendar(ctx, s.store, teacherID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete calendar")
	}
	s.logger.Info("calendar deleted", zap.String("calendar_id", id), zap.String("teacher_id", teacherID))
	_ = s.cache.InvalidateCalendar(ctx, calendar.Code)
	return nil
}

// Public returns the student facing view of an active calendar.
func (s *CalendarService) Public(ctx context.Context, code string) (*models.PublicCalendar, error) {
	key := publicCalendarKey(code)
	var cached models.PublicCalendar
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	calendar, err := activeCalendar(ctx, s.store, code)
	if err != nil {
		return nil, err
	}
	teacherName, err := s.store.TeacherName(ctx, calendar.TeacherID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	slots, err := s.slots.ListByCalendar(ctx, calendar.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar slots")
	}

	view := &models.PublicCalendar{
		ID:                 calendar.ID,
		Name:               calendar.Name,
		Code:               calendar.Code,
		TeacherName:        teacherName,
		AllowedGrades:      []int64(calendar.AllowedGrades),
		MaxStudentsPerSlot: calendar.MaxStudentsPerSlot,
		Slots:              slots,
	}
	_ = s.cache.Set(ctx, key, view, 0)
	return view, nil
}

// ownedCalendar loads a calendar, hiding calendars of other teachers as not found.
func ownedCalendar(ctx context.Context, calendars calendarReader, teacherID, id string) (*models.Calendar, error) {
	calendar, err := calendars.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	if calendar.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
	}
	return calendar, nil
}

// activeCalendar loads a calendar by share code. Inactive calendars are not found.
func activeCalendar(ctx context.Context, calendars calendarReader, code string) (*models.Calendar, error) {
	calendar, err := calendars.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	if !calendar.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
	}
	return calendar, nil
}
