package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentProvider identifies a supported mobile-money operator
type PaymentProvider string

const (
	ProviderMTNMoMo     PaymentProvider = "mtn_momo"
	ProviderAirtelMoney PaymentProvider = "airtel_money"
)

// ValidProvider reports whether the provider code is supported
func ValidProvider(p PaymentProvider) bool {
	return p == ProviderMTNMoMo || p == ProviderAirtelMoney
}

// AttemptStatus is the polled outcome of a payment attempt
type AttemptStatus string

const (
	AttemptStatusPending   AttemptStatus = "pending"
	AttemptStatusCompleted AttemptStatus = "completed"
	AttemptStatusFailed    AttemptStatus = "failed"
)

// PaymentAttempt bridges a booking to the external mobile-money provider.
// It exists only to correlate a poll response or webhook back to a booking.
type PaymentAttempt struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	BookingID   uuid.UUID       `json:"booking_id" db:"booking_id"`
	Provider    PaymentProvider `json:"provider" db:"provider"`
	PhoneNumber string          `json:"phone_number" db:"phone_number"`
	ProviderRef string          `json:"provider_ref" db:"provider_ref"`
	Amount      float64         `json:"amount" db:"amount"`
	Currency    string          `json:"currency" db:"currency"`
	Status      AttemptStatus   `json:"status" db:"status"`
	InitiatedAt time.Time       `json:"initiated_at" db:"initiated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// InitiatePaymentRequest is the payload for the initiate-payment endpoint
type InitiatePaymentRequest struct {
	Provider    PaymentProvider `json:"provider" binding:"required"`
	PhoneNumber string          `json:"phone_number" binding:"required"`
}

// InitiatePaymentResponse is returned once the provider accepts the charge
type InitiatePaymentResponse struct {
	AttemptID   uuid.UUID       `json:"attempt_id"`
	BookingID   uuid.UUID       `json:"booking_id"`
	Provider    PaymentProvider `json:"provider"`
	ProviderRef string          `json:"provider_ref"`
	Amount      float64         `json:"amount"`
	Currency    string          `json:"currency"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// PollStatusResponse is returned from the poll-status endpoint
type PollStatusResponse struct {
	AttemptID     uuid.UUID     `json:"attempt_id"`
	BookingID     uuid.UUID     `json:"booking_id"`
	AttemptStatus AttemptStatus `json:"attempt_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TicketQR      *string       `json:"ticket_qr,omitempty"`
}

// PaymentEventType classifies payment audit entries
type PaymentEventType string

const (
	PaymentEventInitiated       PaymentEventType = "initiated"
	PaymentEventPolled          PaymentEventType = "polled"
	PaymentEventCompleted       PaymentEventType = "completed"
	PaymentEventFailed          PaymentEventType = "failed"
	PaymentEventWebhookReceived PaymentEventType = "webhook_received"
	PaymentEventProviderError   PaymentEventType = "provider_error"
)

// PaymentAudit is an append-only record of every provider interaction.
// Observability only: it never gates a booking transition.
type PaymentAudit struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	AttemptID    *uuid.UUID       `json:"attempt_id,omitempty" db:"attempt_id"`
	BookingID    *uuid.UUID       `json:"booking_id,omitempty" db:"booking_id"`
	ProviderRef  *string          `json:"provider_ref,omitempty" db:"provider_ref"`
	EventType    PaymentEventType `json:"event_type" db:"event_type"`
	Amount       *float64         `json:"amount,omitempty" db:"amount"`
	Currency     *string          `json:"currency,omitempty" db:"currency"`
	Outcome      *string          `json:"outcome,omitempty" db:"outcome"`
	ErrorMessage *string          `json:"error_message,omitempty" db:"error_message"`
	IPAddress    *string          `json:"ip_address,omitempty" db:"ip_address"`
	ClientOS     *string          `json:"client_os,omitempty" db:"client_os"`
	ClientAgent  *string          `json:"client_agent,omitempty" db:"client_agent"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}
