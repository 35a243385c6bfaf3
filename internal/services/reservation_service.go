package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/cache"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/pkg/reference"
)

const uniqueViolation = "23505"

// referenceRetries bounds how often a colliding booking reference is
// regenerated before giving up
const referenceRetries = 3

// ReservationService owns the reservation flow: seat validation, the
// atomic claim, and the countdown query clients poll while paying.
type ReservationService struct {
	bookingRepo *database.BookingRepository
	tripRepo    *database.TripRepository
	cache       *cache.AvailabilityCache
	logger      *logrus.Logger
	cfg         config.BookingConfig
	currency    string
}

// NewReservationService creates a new reservation service
func NewReservationService(
	bookingRepo *database.BookingRepository,
	tripRepo *database.TripRepository,
	availabilityCache *cache.AvailabilityCache,
	logger *logrus.Logger,
	cfg config.BookingConfig,
	currency string,
) *ReservationService {
	return &ReservationService{
		bookingRepo: bookingRepo,
		tripRepo:    tripRepo,
		cache:       availabilityCache,
		logger:      logger,
		cfg:         cfg,
		currency:    currency,
	}
}

// ============================================================================
// RESERVATION
// ============================================================================

// Reserve creates a pending booking holding the requested seats. The
// seats stay held for the configured hold window; if payment does not
// complete in time the sweeper reclaims them.
func (s *ReservationService) Reserve(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.BookingResponse, error) {
	// 1. Validate the request shape
	tripID, err := uuid.Parse(req.TripID)
	if err != nil {
		return nil, fmt.Errorf("invalid trip id: %w", models.ErrTripNotFound)
	}

	if len(req.SeatNumbers) == 0 {
		return nil, fmt.Errorf("at least one seat is required: %w", models.ErrInvalidSeatNumber)
	}
	if len(req.SeatNumbers) > s.cfg.MaxSeatsPerBooking {
		return nil, fmt.Errorf("at most %d seats per booking: %w", s.cfg.MaxSeatsPerBooking, models.ErrInvalidSeatNumber)
	}
	seen := make(map[int]bool, len(req.SeatNumbers))
	for _, seat := range req.SeatNumbers {
		if seen[seat] {
			return nil, fmt.Errorf("seat %d requested twice: %w", seat, models.ErrInvalidSeatNumber)
		}
		seen[seat] = true
	}

	// 2. Check the trip is open for booking
	trip, err := s.tripRepo.GetByID(tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsBookable(time.Now()) {
		return nil, models.ErrTripNotBookable
	}
	for _, seat := range req.SeatNumbers {
		if !trip.ValidSeatNumber(seat) {
			return nil, fmt.Errorf("seat %d does not exist on this bus: %w", seat, models.ErrInvalidSeatNumber)
		}
	}

	// 3. Derive the fare when the client did not pin one
	amount := req.TotalAmount
	if amount <= 0 {
		amount = trip.PricePerSeat * float64(len(req.SeatNumbers))
	}

	// 4. Claim the seats. The repository re-checks everything under the
	// trip row lock, so two clients racing for the same seats resolve
	// to exactly one winner.
	expiresAt := time.Now().Add(s.cfg.HoldWindow)
	booking := &models.Booking{
		UserID:         userID,
		TripID:         tripID,
		TotalAmount:    amount,
		Currency:       s.currency,
		PaymentStatus:  models.PaymentStatusPending,
		PassengerName:  req.PassengerName,
		PassengerPhone: req.PassengerPhone,
		ExpiresAt:      &expiresAt,
	}

	transientRetried := false
	for attempt := 0; ; attempt++ {
		ref, refErr := reference.New()
		if refErr != nil {
			return nil, refErr
		}
		booking.Reference = ref
		err = s.bookingRepo.Reserve(booking, req.SeatNumbers)
		if err == nil {
			break
		}
		if isReferenceCollision(err) && attempt < referenceRetries {
			s.logger.WithField("reference", booking.Reference).Warn("Booking reference collision, regenerating")
			continue
		}
		if isTransient(err) && !transientRetried {
			transientRetried = true
			s.logger.WithError(err).Warn("Reservation transaction failed, retrying once")
			continue
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, tripID)

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  booking.Reference,
		"trip_id":    tripID,
		"user_id":    userID,
		"seats":      req.SeatNumbers,
		"expires_at": expiresAt,
	}).Info("Booking created")

	return &models.BookingResponse{
		BookingID:     booking.ID,
		Reference:     booking.Reference,
		TripID:        tripID,
		Seats:         booking.Seats,
		TotalAmount:   booking.TotalAmount,
		Currency:      booking.Currency,
		PaymentStatus: booking.PaymentStatus,
		ExpiresAt:     booking.ExpiresAt,
		TTLSeconds:    int(s.cfg.HoldWindow.Seconds()),
	}, nil
}

// isReferenceCollision detects a unique violation on the booking
// reference column. Seat uniqueness violations are not retried; they
// surface as conflicts.
func isReferenceCollision(err error) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == "bookings_booking_reference_key"
}

// isTransient reports whether a reservation failure is worth one retry
// with the same inputs. Client-correctable outcomes and constraint
// violations are final; anything else (lost connection, serialization
// failure) gets a second attempt.
func isTransient(err error) bool {
	var insufficient *models.InsufficientSeatsError
	var conflict *models.SeatConflictError
	if errors.As(err, &insufficient) || errors.As(err, &conflict) {
		return false
	}
	if errors.Is(err, models.ErrTripNotFound) {
		return false
	}
	if _, ok := err.(*pq.Error); ok {
		return false
	}
	return true
}

// ============================================================================
// READS
// ============================================================================

// GetBooking retrieves a booking with its seats. Non-admin callers only
// see their own bookings.
func (s *ReservationService) GetBooking(bookingID, actorID uuid.UUID, isAdmin bool) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actorID && !isAdmin {
		return nil, models.ErrUnauthorized
	}

	seats, err := s.bookingRepo.GetSeats(bookingID)
	if err != nil {
		return nil, err
	}
	booking.Seats = seats
	return booking, nil
}

// GetCountdown answers the payment-countdown poll. An overdue pending
// booking is expired lazily here rather than waiting for the next sweep,
// so a client polling right after the deadline never sees a live hold.
func (s *ReservationService) GetCountdown(ctx context.Context, bookingID, actorID uuid.UUID, isAdmin bool) (*models.CountdownResponse, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actorID && !isAdmin {
		return nil, models.ErrUnauthorized
	}

	now := time.Now()

	if booking.IsExpired(now) {
		released, _, tripID, err := s.bookingRepo.ReleaseSeats(
			booking.ID,
			[]models.PaymentStatus{models.PaymentStatusPending},
			models.PaymentStatusCancelled,
			models.ReasonExpired,
		)
		if err != nil {
			return nil, err
		}
		if released {
			s.cache.Invalidate(ctx, tripID)
			s.logger.WithField("booking_id", booking.ID).Info("Booking expired on countdown poll")
			return &models.CountdownResponse{
				BookingID:     booking.ID,
				State:         "expired",
				PaymentStatus: models.PaymentStatusCancelled,
				ExpiresAt:     booking.ExpiresAt,
			}, nil
		}

		// Lost the release race to a concurrent settlement (a webhook or
		// poll completed the payment, or another path already expired
		// it). Report the booking's actual state, not a stale expiry.
		booking, err = s.bookingRepo.GetByID(bookingID)
		if err != nil {
			return nil, err
		}
	}

	state := "counting"
	if booking.IsTerminal() {
		state = "settled"
		if booking.CancellationReason != nil && *booking.CancellationReason == models.ReasonExpired {
			state = "expired"
		}
	}

	return &models.CountdownResponse{
		BookingID:        booking.ID,
		State:            state,
		PaymentStatus:    booking.PaymentStatus,
		RemainingSeconds: int(booking.TimeRemaining(now, s.cfg.HoldWindow).Seconds()),
		ExpiresAt:        booking.ExpiresAt,
	}, nil
}

// ListUserBookings retrieves a user's own bookings
func (s *ReservationService) ListUserBookings(userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.bookingRepo.GetByUserID(userID, limit, offset)
}

// ListBookings retrieves bookings matching the filter (admin only at the
// handler layer)
func (s *ReservationService) ListBookings(filter models.BookingListFilter) ([]models.Booking, error) {
	return s.bookingRepo.List(filter)
}

// GetAvailability serves the seat-map projection, cache first
func (s *ReservationService) GetAvailability(ctx context.Context, tripID uuid.UUID) (*models.TripAvailability, error) {
	if cached := s.cache.Get(ctx, tripID); cached != nil {
		return cached, nil
	}

	availability, err := s.tripRepo.GetAvailability(tripID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, availability)
	return availability, nil
}
