package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/internal/services"
	"github.com/swiftbus/booking-backend/internal/utils"
	"github.com/swiftbus/booking-backend/pkg/momo"
)

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	paymentSvc *services.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentSvc *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// clientMeta gathers request metadata for the payment audit trail
func clientMeta(c *gin.Context) services.ClientMeta {
	ip := utils.GetRealIP(c)
	agent := utils.GetUserAgent(c)
	os := utils.ClientOS(agent)
	return services.ClientMeta{
		IPAddress:   &ip,
		ClientOS:    &os,
		ClientAgent: &agent,
	}
}

// InitiatePayment starts a mobile-money charge for a booking
// POST /api/v1/bookings/:id/payment
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
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

	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.paymentSvc.Initiate(c.Request.Context(), bookingID, userCtx.UserID, &req, clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// PollPaymentStatus queries the provider and settles the booking when
// the outcome is final
// GET /api/v1/bookings/:id/payment
func (h *PaymentHandler) PollPaymentStatus(c *gin.Context) {
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

	resp, err := h.paymentSvc.PollStatus(c.Request.Context(), bookingID, userCtx.UserID, clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// webhookPayload is the provider's callback body
type webhookPayload struct {
	ProviderRef string `json:"provider_ref" binding:"required"`
	Status      string `json:"status" binding:"required"`
}

// PaymentWebhook receives asynchronous settlement callbacks from the
// provider. The route carries no client identity; it correlates by
// provider_ref and only triggers the same guarded transitions as polling.
// POST /api/v1/payments/webhook
func (h *PaymentHandler) PaymentWebhook(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	outcome := momo.Outcome(payload.Status)
	switch outcome {
	case momo.OutcomePending, momo.OutcomeCompleted, momo.OutcomeFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}

	err := h.paymentSvc.HandleWebhook(c.Request.Context(), payload.ProviderRef, outcome, clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
