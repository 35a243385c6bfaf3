package models

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus represents the lifecycle state of a scheduled trip
type TripStatus string

const (
	TripStatusScheduled TripStatus = "scheduled"
	TripStatusBoarding  TripStatus = "boarding"
	TripStatusDeparted  TripStatus = "departed"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// Trip represents a scheduled departure. AvailableSeats is the authoritative
// seat ledger: it is only mutated inside the same transaction as the booking
// and seat-assignment rows it accounts for.
type Trip struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	RouteID           uuid.UUID  `json:"route_id" db:"route_id"`
	BusID             uuid.UUID  `json:"bus_id" db:"bus_id"`
	OriginCity        string     `json:"origin_city" db:"origin_city"`
	DestinationCity   string     `json:"destination_city" db:"destination_city"`
	DepartureDatetime time.Time  `json:"departure_datetime" db:"departure_datetime"`
	PricePerSeat      float64    `json:"price_per_seat" db:"price_per_seat"`
	TotalSeats        int        `json:"total_seats" db:"total_seats"`
	AvailableSeats    int        `json:"available_seats" db:"available_seats"`
	Status            TripStatus `json:"status" db:"status"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// IsBookable reports whether new reservations may be taken against the trip
func (t *Trip) IsBookable(now time.Time) bool {
	if t.Status != TripStatusScheduled && t.Status != TripStatusBoarding {
		return false
	}
	return t.DepartureDatetime.After(now)
}

// ValidSeatNumber reports whether a seat number exists on the trip's bus.
// Seats are numbered 1..TotalSeats.
func (t *Trip) ValidSeatNumber(seat int) bool {
	return seat >= 1 && seat <= t.TotalSeats
}

// TripAvailability is the read projection served to seat-selection UIs
type TripAvailability struct {
	TripID         uuid.UUID `json:"trip_id"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	BookedSeats    []int     `json:"booked_seats"`
}
