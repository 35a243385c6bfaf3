package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/swiftbus/booking-backend/internal/models"
)

// respondError translates service errors into HTTP responses. Conflict
// payloads carry enough detail for the client to re-select seats without
// another round trip.
func respondError(c *gin.Context, err error) {
	var insufficientErr *models.InsufficientSeatsError
	if errors.As(err, &insufficientErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient_seats",
			"message":   insufficientErr.Error(),
			"requested": insufficientErr.Requested,
			"available": insufficientErr.Available,
			"code":      "INSUFFICIENT_SEATS",
		})
		return
	}

	var conflictErr *models.SeatConflictError
	if errors.As(err, &conflictErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":          "seat_conflict",
			"message":        conflictErr.Error(),
			"conflict_seats": conflictErr.Seats,
			"code":           "SEAT_CONFLICT",
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrTripNotFound),
		errors.Is(err, models.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
			"code":    "NOT_FOUND",
		})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You don't have permission to access this booking",
			"code":    "FORBIDDEN",
		})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_transition",
			"message": err.Error(),
			"code":    "INVALID_TRANSITION",
		})
	case errors.Is(err, models.ErrBookingExpired):
		c.JSON(http.StatusGone, gin.H{
			"error":   "booking_expired",
			"message": "The payment window has closed and the seats were released",
			"code":    "BOOKING_EXPIRED",
		})
	case errors.Is(err, models.ErrProviderUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "provider_unavailable",
			"message": "The payment provider is unreachable, try again shortly",
			"code":    "PROVIDER_UNAVAILABLE",
		})
	case errors.Is(err, models.ErrTripNotBookable),
		errors.Is(err, models.ErrInvalidSeatNumber):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": err.Error(),
			"code":    "BAD_REQUEST",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong",
			"code":    "INTERNAL_ERROR",
		})
	}
}
