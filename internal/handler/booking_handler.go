package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-calendar-api/internal/models"
	"github.com/noah-isme/lesson-calendar-api/internal/service"
	appErrors "github.com/noah-isme/lesson-calendar-api/pkg/errors"
	"github.com/noah-isme/lesson-calendar-api/pkg/response"
)

type bookingService interface {
	Submit(ctx context.Context, req models.SubmitBookingRequest) (*models.Booking, error)
	ListForTeacher(ctx context.Context, teacherID, calendarID string, filter models.BookingFilter) ([]models.BookingView, *models.Pagination, error)
	PublicOccupancy(ctx context.Context, code string, filter models.BookingFilter) ([]models.SlotOccupancy, error)
	Delete(ctx context.Context, teacherID, bookingID string) error
}

type rosterService interface {
	Export(ctx context.Context, teacherID, calendarID string, filter models.RosterFilter) (*service.RosterFile, error)
}

// BookingHandler wires booking admission, listings and roster export to HTTP routes.
type BookingHandler struct {
	bookings bookingService
	roster   rosterService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings bookingService, roster rosterService) *BookingHandler {
	return &BookingHandler{bookings: bookings, roster: roster}
}

// Submit godoc
// @Summary Book a slot
// @Tags Public
// @Accept json
// @Produce json
// @Param Accept-Language header string false "en or he"
// @Param payload body models.SubmitBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /public/bookings [post]
func (h *BookingHandler) Submit(c *gin.Context) {
	var req models.SubmitBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	booking, err := h.bookings.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// PublicList godoc
// @Summary Slot occupancy without student names
// @Tags Public
// @Produce json
// @Param code path string true "Calendar code"
// @Param startDate query string false "First date (YYYY-MM-DD)"
// @Param endDate query string false "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /public/calendars/{code}/bookings [get]
func (h *BookingHandler) PublicList(c *gin.Context) {
	var filter models.BookingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	rows, err := h.bookings.PublicOccupancy(c.Request.Context(), c.Param("code"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// List godoc
// @Summary List bookings of a calendar
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Calendar ID"
// @Param startDate query string false "First date (YYYY-MM-DD)"
// @Param endDate query string false "Last date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id}/bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "calendar not found")
	if !ok {
		return
	}
	var filter models.BookingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	bookings, pagination, err := h.bookings.ListForTeacher(c.Request.Context(), claims.UserID, id, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Export godoc
// @Summary Download the booking roster
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Calendar ID"
// @Param startDate query string false "First date (YYYY-MM-DD)"
// @Param endDate query string false "Last date (YYYY-MM-DD)"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /calendars/{id}/bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "calendar not found")
	if !ok {
		return
	}
	var filter models.RosterFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.roster.Export(c.Request.Context(), claims.UserID, id, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Delete godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := idParam(c, "booking not found")
	if !ok {
		return
	}
	if err := h.bookings.Delete(c.Request.Context(), claims.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
