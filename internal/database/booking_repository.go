package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/swiftbus/booking-backend/internal/models"
)

// BookingRepository handles booking database operations. The seat ledger
// on trips, the bookings table, and the booking_seats rows are only ever
// mutated together inside one transaction, so the three can never
// disagree about who holds a seat.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, booking_reference, user_id, trip_id, seat_count, total_amount,
	currency, payment_status, passenger_name, passenger_phone, ticket_qr,
	cancellation_reason, created_at, updated_at, expires_at, paid_at,
	cancelled_at`

// ============================================================================
// RESERVATION
// ============================================================================

// Reserve atomically claims seats for a new booking. Inside one
// transaction it locks the trip row, re-checks the ledger and the live
// seat set, inserts the booking with its seat rows, and decrements
// available_seats. Returns InsufficientSeatsError or SeatConflictError
// when the request cannot be satisfied; on those the transaction rolls
// back and nothing is written.
func (r *BookingRepository) Reserve(booking *models.Booking, seats []int) error {
	if len(seats) == 0 {
		return fmt.Errorf("no seats requested")
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Lock the trip row so concurrent reservations serialize here
	var trip models.Trip
	err = tx.Get(&trip, `SELECT `+tripColumns+` FROM trips WHERE id = $1 FOR UPDATE`, booking.TripID)
	if err == sql.ErrNoRows {
		return models.ErrTripNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock trip: %w", err)
	}

	// 2. Ledger check
	if trip.AvailableSeats < len(seats) {
		return &models.InsufficientSeatsError{
			Requested: len(seats),
			Available: trip.AvailableSeats,
		}
	}

	// 3. Per-seat conflict check against live bookings
	query, args, err := sqlx.In(`
		SELECT bs.seat_number
		FROM booking_seats bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE bs.trip_id = ?
		  AND b.payment_status IN ('pending', 'completed')
		  AND bs.seat_number IN (?)`, booking.TripID, seats)
	if err != nil {
		return fmt.Errorf("failed to build conflict query: %w", err)
	}
	query = tx.Rebind(query)

	var taken []int
	if err := tx.Select(&taken, query, args...); err != nil {
		return fmt.Errorf("failed to check seat conflicts: %w", err)
	}
	if len(taken) > 0 {
		return &models.SeatConflictError{Seats: taken}
	}

	// 4. Insert the booking
	booking.ID = uuid.New()
	booking.SeatCount = len(seats)
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt

	_, err = tx.Exec(`
		INSERT INTO bookings (
			id, booking_reference, user_id, trip_id, seat_count,
			total_amount, currency, payment_status, passenger_name,
			passenger_phone, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`,
		booking.ID, booking.Reference, booking.UserID, booking.TripID,
		booking.SeatCount, booking.TotalAmount, booking.Currency,
		booking.PaymentStatus, booking.PassengerName, booking.PassengerPhone,
		booking.ExpiresAt, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	// 5. Insert one seat row per claimed seat. The unique index on
	// (trip_id, seat_number) over live bookings backstops the conflict
	// check above.
	for _, seat := range seats {
		_, err = tx.Exec(`
			INSERT INTO booking_seats (id, booking_id, trip_id, seat_number, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), booking.ID, booking.TripID, seat, booking.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert seat %d: %w", seat, err)
		}
	}

	// 6. Decrement the ledger, guarded so it can never go negative
	result, err := tx.Exec(`
		UPDATE trips
		SET available_seats = available_seats - $2, updated_at = NOW()
		WHERE id = $1 AND available_seats >= $2`,
		booking.TripID, len(seats),
	)
	if err != nil {
		return fmt.Errorf("failed to decrement seat ledger: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &models.InsufficientSeatsError{
			Requested: len(seats),
			Available: trip.AvailableSeats,
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	booking.Seats = seats
	return nil
}

// ============================================================================
// READS
// ============================================================================

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := r.db.Get(&booking, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByReference retrieves a booking by its human-facing reference
func (r *BookingRepository) GetByReference(reference string) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_reference = $1`

	err := r.db.Get(&booking, query, reference)
	if err == sql.ErrNoRows {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetSeats returns the seat numbers assigned to a booking
func (r *BookingRepository) GetSeats(bookingID uuid.UUID) ([]int, error) {
	seats := []int{}
	query := `SELECT seat_number FROM booking_seats WHERE booking_id = $1 ORDER BY seat_number`
	err := r.db.Select(&seats, query, bookingID)
	return seats, err
}

// GetByUserID retrieves a user's bookings, newest first
func (r *BookingRepository) GetByUserID(userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := r.db.Select(&bookings, query, userID, limit, offset)
	return bookings, err
}

// List retrieves bookings matching the filter, newest first
func (r *BookingRepository) List(filter models.BookingListFilter) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []interface{}{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.TripID != nil {
		args = append(args, *filter.TripID)
		query += fmt.Sprintf(" AND trip_id = $%d", len(args))
	}
	if filter.PaymentStatus != nil {
		args = append(args, *filter.PaymentStatus)
		query += fmt.Sprintf(" AND payment_status = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	bookings := []models.Booking{}
	err := r.db.Select(&bookings, query, args...)
	return bookings, err
}

// GetExpiredPending returns pending bookings past their payment deadline,
// oldest first, capped to limit
func (r *BookingRepository) GetExpiredPending(limit int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE payment_status = 'pending' AND expires_at < NOW()
		ORDER BY expires_at ASC
		LIMIT $1`

	err := r.db.Select(&bookings, query, limit)
	return bookings, err
}

// ============================================================================
// STATE TRANSITIONS
// ============================================================================

// CompletePayment flips a pending booking to completed. The status guard
// makes the transition idempotent under races: whichever caller loses the
// race gets released=false and must re-read the booking to decide whether
// that is fine (already completed) or an error (expired meanwhile).
func (r *BookingRepository) CompletePayment(bookingID uuid.UUID) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET payment_status = 'completed',
		    paid_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`,
		bookingID,
	)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ReleaseSeats moves a booking out of the live set and returns its seats
// to the trip ledger, all in one transaction. The from guard makes the
// release idempotent: a booking already out of the from set is a no-op
// and released comes back false. Expiration, cancellation, and failed
// payments all funnel through here.
func (r *BookingRepository) ReleaseSeats(
	bookingID uuid.UUID,
	from []models.PaymentStatus,
	to models.PaymentStatus,
	reason models.CancellationReason,
) (released bool, seatCount int, tripID uuid.UUID, err error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, 0, uuid.Nil, err
	}
	defer tx.Rollback()

	// 1. Guarded status flip; RETURNING tells us which trip to credit
	query, args, err := sqlx.In(`
		UPDATE bookings
		SET payment_status = ?,
		    cancellation_reason = ?,
		    cancelled_at = NOW(),
		    updated_at = NOW()
		WHERE id = ? AND payment_status IN (?)
		RETURNING trip_id, seat_count`, to, reason, bookingID, from)
	if err != nil {
		return false, 0, uuid.Nil, fmt.Errorf("failed to build release query: %w", err)
	}
	query = tx.Rebind(query)

	row := tx.QueryRow(query, args...)
	if err := row.Scan(&tripID, &seatCount); err != nil {
		if err == sql.ErrNoRows {
			// Lost the race; someone else already settled this booking
			return false, 0, uuid.Nil, nil
		}
		return false, 0, uuid.Nil, fmt.Errorf("failed to release booking: %w", err)
	}

	// 2. Free the seat rows so the seats become claimable again
	result, err := tx.Exec(`DELETE FROM booking_seats WHERE booking_id = $1`, bookingID)
	if err != nil {
		return false, 0, uuid.Nil, fmt.Errorf("failed to delete seat rows: %w", err)
	}
	deleted, _ := result.RowsAffected()
	if int(deleted) != seatCount {
		return false, 0, uuid.Nil, fmt.Errorf(
			"seat row count mismatch: booking %s has seat_count %d but %d seat rows",
			bookingID, seatCount, deleted,
		)
	}

	// 3. Credit the ledger
	_, err = tx.Exec(`
		UPDATE trips
		SET available_seats = available_seats + $2, updated_at = NOW()
		WHERE id = $1`,
		tripID, seatCount,
	)
	if err != nil {
		return false, 0, uuid.Nil, fmt.Errorf("failed to credit seat ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, uuid.Nil, fmt.Errorf("failed to commit release: %w", err)
	}
	return true, seatCount, tripID, nil
}

// SetTicketQR stores the rendered ticket QR for a completed booking
func (r *BookingRepository) SetTicketQR(bookingID uuid.UUID, qr string) error {
	_, err := r.db.Exec(`
		UPDATE bookings
		SET ticket_qr = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'completed'`,
		bookingID, qr,
	)
	return err
}

// ============================================================================
// MAINTENANCE
// ============================================================================

// PurgeTerminalOlderThan deletes failed and cancelled bookings older than
// the cutoff. Completed bookings are kept as the ticket of record.
func (r *BookingRepository) PurgeTerminalOlderThan(cutoff time.Time) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM bookings
		WHERE payment_status IN ('failed', 'cancelled')
		  AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
