package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the payment state of a booking.
// Transitions are strictly pending -> {completed, failed, cancelled};
// no transition out of a terminal state is permitted.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// CancellationReason records why a booking left the live set
type CancellationReason string

const (
	ReasonExpired        CancellationReason = "expired"
	ReasonUserCancelled  CancellationReason = "user_cancelled"
	ReasonAdminCancelled CancellationReason = "admin_cancelled"
	ReasonPaymentFailed  CancellationReason = "payment_failed"
)

// Booking represents one reservation attempt. The seat set is immutable once
// created; seats are never added or swapped after the reserve transaction.
type Booking struct {
	ID                 uuid.UUID           `json:"id" db:"id"`
	Reference          string              `json:"reference" db:"booking_reference"`
	UserID             uuid.UUID           `json:"user_id" db:"user_id"`
	TripID             uuid.UUID           `json:"trip_id" db:"trip_id"`
	SeatCount          int                 `json:"seat_count" db:"seat_count"`
	TotalAmount        float64             `json:"total_amount" db:"total_amount"`
	Currency           string              `json:"currency" db:"currency"`
	PaymentStatus      PaymentStatus       `json:"payment_status" db:"payment_status"`
	PassengerName      *string             `json:"passenger_name,omitempty" db:"passenger_name"`
	PassengerPhone     *string             `json:"passenger_phone,omitempty" db:"passenger_phone"`
	TicketQR           *string             `json:"ticket_qr,omitempty" db:"ticket_qr"`
	CancellationReason *CancellationReason `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
	ExpiresAt          *time.Time          `json:"expires_at,omitempty" db:"expires_at"`
	PaidAt             *time.Time          `json:"paid_at,omitempty" db:"paid_at"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty" db:"cancelled_at"`

	// Seats is populated on reads that join booking_seats
	Seats []int `json:"seats,omitempty" db:"-"`
}

// SeatAssignment links one booking to one seat on one trip. The pair
// (TripID, SeatNumber) is unique across all live bookings.
type SeatAssignment struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BookingID  uuid.UUID `json:"booking_id" db:"booking_id"`
	TripID     uuid.UUID `json:"trip_id" db:"trip_id"`
	SeatNumber int       `json:"seat_number" db:"seat_number"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// IsLive reports whether the booking still holds its seats
func (b *Booking) IsLive() bool {
	return b.PaymentStatus == PaymentStatusPending || b.PaymentStatus == PaymentStatusCompleted
}

// IsTerminal reports whether the booking has reached a final payment state
func (b *Booking) IsTerminal() bool {
	return b.PaymentStatus != PaymentStatusPending
}

// IsExpired reports whether a pending booking is past its payment deadline
func (b *Booking) IsExpired(now time.Time) bool {
	if b.PaymentStatus != PaymentStatusPending || b.ExpiresAt == nil {
		return false
	}
	return !b.ExpiresAt.After(now)
}

// TimeRemaining returns the time left on the hold, capped to the hold window
// to tolerate clock skew or stale client data. Zero for overdue or terminal
// bookings.
func (b *Booking) TimeRemaining(now time.Time, holdWindow time.Duration) time.Duration {
	if b.IsTerminal() || b.ExpiresAt == nil {
		return 0
	}
	remaining := b.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	if remaining > holdWindow {
		return holdWindow
	}
	return remaining
}

// CreateBookingRequest is the payload for the create-reservation endpoint
type CreateBookingRequest struct {
	TripID         string  `json:"trip_id" binding:"required"`
	SeatNumbers    []int   `json:"seat_numbers" binding:"required"`
	TotalAmount    float64 `json:"total_amount"`
	PassengerName  *string `json:"passenger_name,omitempty"`
	PassengerPhone *string `json:"passenger_phone,omitempty"`
}

// BookingResponse is returned after a successful reservation
type BookingResponse struct {
	BookingID     uuid.UUID     `json:"booking_id"`
	Reference     string        `json:"reference"`
	TripID        uuid.UUID     `json:"trip_id"`
	Seats         []int         `json:"seats"`
	TotalAmount   float64       `json:"total_amount"`
	Currency      string        `json:"currency"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	TTLSeconds    int           `json:"ttl_seconds"`
}

// CountdownResponse answers the "how much time is left" query. State is
// "counting" while the hold is live, otherwise "expired" or "settled".
type CountdownResponse struct {
	BookingID        uuid.UUID     `json:"booking_id"`
	State            string        `json:"state"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	RemainingSeconds int           `json:"remaining_seconds"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
}

// CancelBookingResponse flags post-payment cancellations separately because
// they carry refund implications the unpaid-hold path does not.
type CancelBookingResponse struct {
	BookingID     uuid.UUID          `json:"booking_id"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	Reason        CancellationReason `json:"reason"`
	SeatsReleased int                `json:"seats_released"`
	RefundDue     bool               `json:"refund_due"`
}

// BookingListFilter narrows the admin booking listing
type BookingListFilter struct {
	UserID        *uuid.UUID
	TripID        *uuid.UUID
	PaymentStatus *PaymentStatus
	Limit         int
	Offset        int
}
