package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
	"github.com/noah-isme/lesson-calendar-api/internal/repository"
	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
	"github.com/noah-isme/lesson-calendar-api/pkg/export"
)

var rosterHeaders = []string{"Date", "Day", "Period", "Student", "Grade", "Booked At"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// RosterFile is a rendered booking roster ready to be served.
type RosterFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RosterService renders a calendar's bookings as CSV or PDF.
type RosterService struct {
	calendars calendarReader
	bookings  bookingLister
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(calendars calendarReader, bookings bookingLister, validate *validator.Validate, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &RosterService{
		calendars: calendars,
		bookings:  bookings,
		csv:       csv,
		pdf:       pdf,
		validator: validate,
		logger:    logger,
	}
}

// Export renders the bookings of one of the teacher's calendars within the filter's range.
func (s *RosterService) Export(ctx context.Context, teacherID, calendarID string, filter models.RosterFilter) (*RosterFile, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster filter")
	}
	format, err := export.ParseFormat(filter.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster format")
	}
	calendar, err := ownedCalendar(ctx, s.calendars, teacherID, calendarID)
	if err != nil {
		return nil, err
	}
	from, to, err := optionalRange(filter.StartDate, filter.EndDate)
	if err != nil {
		return nil, err
	}

	bookings, _, err := s.bookings.ListByCalendar(ctx, repository.BookingQuery{CalendarID: calendarID, From: from, To: to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	dataset := export.Dataset{Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(bookings))}
	for _, b := range bookings {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":      b.Date.String(),
			"Day":       b.Date.Weekday().String(),
			"Period":    strconv.Itoa(b.PeriodNumber),
			"Student":   b.StudentName,
			"Grade":     strconv.Itoa(b.StudentGrade),
			"Booked At": b.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}

	var payload []byte
	switch format {
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset, calendar.Name)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	s.logger.Info("roster exported", zap.String("calendar_id", calendarID), zap.String("format", string(format)), zap.Int("rows", len(bookings)))
	return &RosterFile{
		Filename:    rosterFilename(calendar, from, to, format),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

func rosterFilename(calendar *models.Calendar, from, to *models.Date, format export.Format) string {
	parts := []string{"roster", sanitizeFilename(calendar.Code)}
	if from != nil {
		parts = append(parts, from.String())
	}
	if to != nil {
		parts = append(parts, to.String())
	}
	return fmt.Sprintf("%s.%s", strings.Join(parts, "_"), format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
