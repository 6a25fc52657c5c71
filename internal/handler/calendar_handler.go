package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
	"github.com/noah-isme/lesson-calendar-api/internal/service"
	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
	"github.com/noah-isme/lesson-calendar-api/pkg/response"
)

type calendarService interface {
	Create(ctx context.Context, teacher models.Teacher, req models.CreateCalendarRequest) (*models.CalendarSummary, error)
	List(ctx context.Context, teacherID string) ([]models.CalendarSummary, error)
	Get(ctx context.Context, teacherID, id string) (*models.CalendarDetail, error)
	Update(ctx context.Context, teacherID, id string, req models.UpdateCalendarRequest) (*models.Calendar, error)
	Delete(ctx context.Context, teacherID, id string) error
	Public(ctx context.Context, code string) (*models.PublicCalendar, error)
}

// CalendarHandler wires calendar management and the public calendar view to HTTP routes.
type CalendarHandler struct {
	calendars calendarService
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(calendars calendarService) *CalendarHandler {
	return &CalendarHandler{calendars: calendars}
}

// List godoc
// @Summary List own calendars
// @Tags Calendars
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /calendars [get]
func (h *CalendarHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	calendars, err := h.calendars.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendars, nil)
}

// Create godoc
// @Summary Create calendar
// @Tags Calendars
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateCalendarRequest true "Calendar payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendars [post]
func (h *CalendarHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.CreateCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar payload"))
		return
	}
	calendar, err := h.calendars.Create(c.Request.Context(), service.TeacherFromClaims(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, calendar)
}

// Get godoc
// @Summary Get calendar detail with upcoming bookings
// @Tags Calendars
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calendar ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendars/{id} [get]
func (h *CalendarHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "calendar not found")
	if !ok {
		return
	}
	detail, err := h.calendars.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update calendar settings
// @Tags Calendars
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calendar ID"
// @Param payload body models.UpdateCalendarRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id} [patch]
func (h *CalendarHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "calendar not found")
	if !ok {
		return
	}
	var req models.UpdateCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar payload"))
		return
	}
	calendar, err := h.calendars.Update(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// Delete godoc
// @Summary Delete calendar with its slots and bookings
// @Tags Calendars
// @Security BearerAuth
// @Param id path string true "Calendar ID"
// @Success 204
// @Router /calendars/{id} [delete]
func (h *CalendarHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "calendar not found")
	if !ok {
		return
	}
	if err := h.calendars.Delete(c.Request.Context(), claims.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Public godoc
// @Summary Get a calendar by share code
// @Tags Public
// @Produce json
// @Param code path string true "Calendar code"
// @Param Accept-Language header string false "en or he"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /public/calendars/{code} [get]
func (h *CalendarHandler) Public(c *gin.Context) {
	calendar, err := h.calendars.Public(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}
