package models

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors surfaced by the booking core. Handlers translate these to
// HTTP statuses; services wrap them with context via fmt.Errorf("...: %w").
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrTripNotFound    = errors.New("trip not found")
	ErrAttemptNotFound = errors.New("payment attempt not found")
	ErrUnauthorized    = errors.New("unauthorized")

	// ErrTripNotBookable covers departed, completed, and cancelled trips
	ErrTripNotBookable = errors.New("trip is not open for booking")

	// ErrInvalidSeatNumber means a requested seat does not exist on the bus
	ErrInvalidSeatNumber = errors.New("invalid seat number")

	// ErrInvalidTransition is returned on any attempt to mutate a booking
	// that is already in a terminal payment state.
	ErrInvalidTransition = errors.New("booking is in a terminal state")

	// ErrBookingExpired means the hold window has elapsed and the seats
	// have been (or are about to be) released. The client must restart
	// the reservation flow.
	ErrBookingExpired = errors.New("booking expired, seats released")

	// ErrProviderUnavailable is surfaced only after the bounded retry
	// budget against the payment provider is exhausted.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// InsufficientSeatsError means the trip's ledger cannot cover the request.
// Client-correctable: pick fewer seats or another trip.
type InsufficientSeatsError struct {
	Requested int
	Available int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("insufficient seats: requested %d, available %d", e.Requested, e.Available)
}

// SeatConflictError names the specific seats already claimed by live
// bookings so the client can re-select.
type SeatConflictError struct {
	Seats []int
}

func (e *SeatConflictError) Error() string {
	sorted := make([]int, len(e.Seats))
	copy(sorted, e.Seats)
	sort.Ints(sorted)
	return fmt.Sprintf("seats already taken: %v", sorted)
}
