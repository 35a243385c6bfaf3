package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/cache"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

// CancellationService handles user and admin initiated cancellations.
// It rides the same guarded release primitive as the sweeper, so a
// cancel racing an expiry or a completing payment resolves cleanly.
type CancellationService struct {
	bookingRepo *database.BookingRepository
	cache       *cache.AvailabilityCache
	logger      *logrus.Logger
}

// NewCancellationService creates a new cancellation service
func NewCancellationService(
	bookingRepo *database.BookingRepository,
	availabilityCache *cache.AvailabilityCache,
	logger *logrus.Logger,
) *CancellationService {
	return &CancellationService{
		bookingRepo: bookingRepo,
		cache:       availabilityCache,
		logger:      logger,
	}
}

// Cancel voids a booking and frees its seats. Owners cancel their own
// bookings; admins cancel anyone's. Pending and completed bookings can
// be cancelled; a completed one flags a refund for the finance side.
func (s *CancellationService) Cancel(ctx context.Context, bookingID, actorID uuid.UUID, isAdmin bool) (*models.CancelBookingResponse, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actorID && !isAdmin {
		return nil, models.ErrUnauthorized
	}
	if !booking.IsLive() {
		return nil, models.ErrInvalidTransition
	}

	wasCompleted := booking.PaymentStatus == models.PaymentStatusCompleted

	reason := models.ReasonUserCancelled
	if isAdmin && booking.UserID != actorID {
		reason = models.ReasonAdminCancelled
	}

	released, seatCount, tripID, err := s.bookingRepo.ReleaseSeats(
		bookingID,
		[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusCompleted},
		models.PaymentStatusCancelled,
		reason,
	)
	if err != nil {
		return nil, err
	}
	if !released {
		// Expired or settled between the read and the release
		return nil, models.ErrInvalidTransition
	}

	s.cache.Invalidate(ctx, tripID)

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"reference":  booking.Reference,
		"actor_id":   actorID,
		"reason":     reason,
		"refund_due": wasCompleted,
	}).Info("Booking cancelled")

	return &models.CancelBookingResponse{
		BookingID:     bookingID,
		PaymentStatus: models.PaymentStatusCancelled,
		Reason:        reason,
		SeatsReleased: seatCount,
		RefundDue:     wasCompleted,
	}, nil
}
