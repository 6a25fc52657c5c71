package service

import (
	"time"

	"github.com/noah-isme/lesson-calendar-api/internal/availability"
	"github.com/noah-isme/lesson-calendar-api/internal/models"
	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
)

// optionalRange parses filter bounds, leaving absent ones nil.
func optionalRange(startRaw, endRaw string) (*models.Date, *models.Date, error) {
	var from, to *models.Date
	if startRaw != "" {
		d, err := models.ParseDate(startRaw)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid startDate")
		}
		from = &d
	}
	if endRaw != "" {
		d, err := models.ParseDate(endRaw)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid endDate")
		}
		to = &d
	}
	if from != nil && to != nil && to.Before(from.Time) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}
	return from, to, nil
}

// boundedRange resolves a public date window. It starts today and spans two weeks by default,
// and never exceeds availability.MaxRangeDays.
func boundedRange(startRaw, endRaw string, now time.Time) (models.Date, models.Date, error) {
	from, to, err := optionalRange(startRaw, endRaw)
	if err != nil {
		return models.Date{}, models.Date{}, err
	}
	start := availability.Today(now)
	if from != nil {
		start = *from
	}
	end := start.AddDays(defaultWindowLength - 1)
	if to != nil {
		end = *to
	}
	if end.Before(start.Time) {
		return models.Date{}, models.Date{}, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}
	if days := int(end.Sub(start.Time).Hours()/24) + 1; days > availability.MaxRangeDays {
		return models.Date{}, models.Date{}, appErrors.Clone(appErrors.ErrValidation, "date range is limited to 62 days")
	}
	return start, end, nil
}
