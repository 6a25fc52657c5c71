package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones still match their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTryAgain     = New("TRY_AGAIN", http.StatusServiceUnavailable, "the request could not be completed, please try again")
	ErrRateLimited  = New("RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests, "too many requests")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Booking admission rejections.
var (
	ErrSlotNotAvailableOnDate = New("SLOT_NOT_AVAILABLE_ON_DATE", http.StatusBadRequest, "this slot is not available on the selected date")
	ErrWeekdayMismatch        = New("WEEKDAY_MISMATCH", http.StatusBadRequest, "the selected date does not fall on the correct day of the week for this slot")
	ErrGradeNotAllowed        = New("GRADE_NOT_ALLOWED", http.StatusBadRequest, "this grade is not allowed for this calendar")
	ErrDateInPast             = New("DATE_IN_PAST", http.StatusBadRequest, "cannot book a date in the past")
	ErrInsufficientLeadTime   = New("INSUFFICIENT_LEAD_TIME", http.StatusBadRequest, "bookings must be made at least 24 hours in advance")
	ErrSlotFull               = New("SLOT_FULL", http.StatusConflict, "this slot is already full")
	ErrGradeExclusiveConflict = New("GRADE_EXCLUSIVE_CONFLICT", http.StatusConflict, "this slot is reserved for another grade on this date")
	ErrDuplicateBooking       = New("DUPLICATE_BOOKING", http.StatusConflict, "you have already booked this slot")
)

// Availability editor rejections.
var (
	ErrSlotHasFutureBookings = New("SLOT_HAS_FUTURE_BOOKINGS", http.StatusConflict, "cannot remove a slot that has future bookings, cancel the bookings first")
)

// SlotDetails identifies the weekly slot a rejection refers to.
type SlotDetails struct {
	DayOfWeek    int `json:"day_of_week"`
	PeriodNumber int `json:"period_number"`
}

// GradeDetails carries the grade a rejection refers to.
type GradeDetails struct {
	Grade int `json:"grade"`
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of the error carrying structured details for the client.
func WithDetails(err *Error, details interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}
