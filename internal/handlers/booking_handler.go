package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
)

// BookingHandler handles reservation endpoints
type BookingHandler struct {
	reservationSvc  *services.ReservationService
	cancellationSvc *services.CancellationService
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	reservationSvc *services.ReservationService,
	cancellationSvc *services.CancellationService,
) *BookingHandler {
	return &BookingHandler{
		reservationSvc:  reservationSvc,
		cancellationSvc: cancellationSvc,
	}
}

// CreateBooking creates a new reservation holding the requested seats
// POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.reservationSvc.Reserve(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetBooking returns a booking with its seats
// GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := h.reservationSvc.GetBooking(bookingID, userCtx.UserID, userCtx.IsAdmin())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetCountdown returns the remaining payment window for a booking
// GET /api/v1/bookings/:id/countdown
func (h *BookingHandler) GetCountdown(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	resp, err := h.reservationSvc.GetCountdown(c.Request.Context(), bookingID, userCtx.UserID, userCtx.IsAdmin())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelBooking voids a booking and frees its seats
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	resp, err := h.cancellationSvc.Cancel(c.Request.Context(), bookingID, userCtx.UserID, userCtx.IsAdmin())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListMyBookings returns the caller's bookings, newest first
// GET /api/v1/bookings
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.reservationSvc.ListUserBookings(userCtx.UserID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// ListBookings returns bookings matching the filter (admin)
// GET /api/v1/admin/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	var filter models.BookingListFilter

	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id filter"})
			return
		}
		filter.UserID = &id
	}
	if raw := c.Query("trip_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip_id filter"})
			return
		}
		filter.TripID = &id
	}
	if raw := c.Query("payment_status"); raw != "" {
		status := models.PaymentStatus(raw)
		filter.PaymentStatus = &status
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.reservationSvc.ListBookings(filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// GetTripAvailability returns the seat-map projection for a trip
// GET /api/v1/trips/:id/availability
func (h *BookingHandler) GetTripAvailability(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip ID"})
		return
	}

	availability, err := h.reservationSvc.GetAvailability(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}
