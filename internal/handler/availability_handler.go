package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
	"github.com/noah-isme/lesson-calendar-api/pkg/response"
)

type availabilityService interface {
	ApplyEdit(ctx context.Context, teacherID, calendarID string, req models.EditAvailabilityRequest) (*models.EditResult, error)
	PublicAvailability(ctx context.Context, code, from, to string) ([]models.DayAvailability, error)
}

// AvailabilityHandler exposes the availability editor and the projected public availability.
type AvailabilityHandler struct {
	availability availabilityService
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(availability availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// Edit godoc
// @Summary Replace the weekly availability permanently or for the current week or month
// @Description The payload lists every (day, period) the calendar should offer in the scope.
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calendar ID"
// @Param payload body models.EditAvailabilityRequest true "Desired slots"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /calendars/{id}/availability [put]
func (h *AvailabilityHandler) Edit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "calendar not found")
	if !ok {
		return
	}
	var req models.EditAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	result, err := h.availability.ApplyEdit(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Public godoc
// @Summary Bookable slots per date
// @Tags Public
// @Produce json
// @Param code path string true "Calendar code"
// @Param from query string false "First date (YYYY-MM-DD), defaults to today"
// @Param to query string false "Last date (YYYY-MM-DD), at most 62 days after from"
// @Success 200 {object} response.Envelope
// @Router /public/calendars/{code}/availability [get]
func (h *AvailabilityHandler) Public(c *gin.Context) {
	days, err := h.availability.PublicAvailability(c.Request.Context(), c.Param("code"), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}
