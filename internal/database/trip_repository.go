package database

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/swiftbus/booking-backend/internal/models"
)

// TripRepository handles trip database operations
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `
	id, route_id, bus_id, origin_city, destination_city,
	departure_datetime, price_per_seat, total_seats, available_seats,
	status, created_at, updated_at`

// GetByID retrieves a trip by ID
func (r *TripRepository) GetByID(tripID uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	err := r.db.Get(&trip, query, tripID)
	if err == sql.ErrNoRows {
		return nil, models.ErrTripNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// GetBookedSeats returns seat numbers held by live bookings on a trip.
// Pending holds and completed bookings both count; failed and cancelled
// bookings have already had their seat rows deleted.
func (r *TripRepository) GetBookedSeats(tripID uuid.UUID) ([]int, error) {
	query := `
		SELECT bs.seat_number
		FROM booking_seats bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE bs.trip_id = $1
		  AND b.payment_status IN ('pending', 'completed')
		ORDER BY bs.seat_number`

	seats := []int{}
	err := r.db.Select(&seats, query, tripID)
	return seats, err
}

// GetAvailability builds the seat-map projection for a trip
func (r *TripRepository) GetAvailability(tripID uuid.UUID) (*models.TripAvailability, error) {
	trip, err := r.GetByID(tripID)
	if err != nil {
		return nil, err
	}

	booked, err := r.GetBookedSeats(tripID)
	if err != nil {
		return nil, err
	}

	return &models.TripAvailability{
		TripID:         trip.ID,
		TotalSeats:     trip.TotalSeats,
		AvailableSeats: trip.AvailableSeats,
		BookedSeats:    booked,
	}, nil
}
